package tools

import (
	"context"
	"fmt"

	"github.com/spectralhq/spectral/pkg/models"
)

// OCREngine extracts text from an image file. No engine ships by default;
// the adapter reports the engine as not installed until one is wired.
type OCREngine interface {
	ExtractText(ctx context.Context, imagePath string) (string, error)
}

// RegisterOCRTools adds the ocr family. engine may be nil.
func RegisterOCRTools(r *Registry, env *Env, engine OCREngine) {
	r.Register(&ocrExtract{base{"ocr_extract_text", "ocr", "Extract text from an image with OCR", env}, engine})
}

type ocrExtract struct {
	base
	engine OCREngine
}

func (t *ocrExtract) Execute(ctx context.Context, params map[string]any) *models.ActionResult {
	path, err := stringParam(params, "image_path")
	if err != nil {
		return failure(t.name, err.Error())
	}
	if err := t.checkPath(path); err != nil {
		return failure(t.name, err.Error())
	}
	if t.engine == nil {
		return failure(t.name, "ocr engine is not installed")
	}
	if t.env.DryRun {
		return dryRunResult(t.name, "extract text from "+path)
	}
	text, err := t.engine.ExtractText(ctx, path)
	if err != nil {
		return failure(t.name, fmt.Sprintf("extract text: %v", err))
	}
	return success(t.name, fmt.Sprintf("Extracted %d characters", len(text)), map[string]any{
		"image_path": path,
		"text":       text,
	})
}
