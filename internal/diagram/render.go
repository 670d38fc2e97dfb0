package diagram

import "fmt"

// Render parses source and renders it in one call, mirroring the teacher's
// RenderDiagram entry point.
func Render(source string, cfg *Config) (string, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	d, err := DiagramFactory(source)
	if err != nil {
		return "", fmt.Errorf("detect diagram type: %w", err)
	}

	if err := d.Parse(source); err != nil {
		return "", fmt.Errorf("parse %s diagram: %w", d.Type(), err)
	}

	out, err := d.Render(cfg)
	if err != nil {
		return "", fmt.Errorf("render %s diagram: %w", d.Type(), err)
	}

	return out, nil
}
