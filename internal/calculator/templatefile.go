package calculator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// TemplateFile is the on-disk YAML form used by the seed and run commands.
//
//	templates:
//	  - name: Concrete slab
//	    variables:
//	      - {name: length, unit: Feet, default_value: 10}
//	    formulas:
//	      - {name: volume, expression: length * width * depth / 27}
type TemplateFile struct {
	Templates []TemplateInput `yaml:"templates"`
}

// LoadTemplateFile reads and validates every template in path.
func LoadTemplateFile(path string) ([]TemplateInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading template file: %w", err)
	}
	return ParseTemplateFile(data)
}

// ParseTemplateFile decodes YAML template definitions. A document may either
// hold a top-level "templates" list or a single template.
func ParseTemplateFile(data []byte) ([]TemplateInput, error) {
	var file TemplateFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("template file is empty")
		}
		// Fall back to a bare single-template document.
		var single TemplateInput
		if serr := yaml.Unmarshal(data, &single); serr != nil || single.Name == "" {
			return nil, fmt.Errorf("parsing template file: %w", err)
		}
		file.Templates = []TemplateInput{single}
	}

	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("template file declares no templates")
	}

	for i := range file.Templates {
		if err := file.Templates[i].Validate(); err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, file.Templates[i].Name, err)
		}
	}
	return file.Templates, nil
}
