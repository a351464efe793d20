package planner

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spectralhq/spectral/internal/rag"
	"github.com/spectralhq/spectral/pkg/models"
)

const planningSystemPrompt = `You are a planning assistant that breaks user requests into concrete tool invocations.
Reply with a single JSON object:
{
  "description": "<one line summary>",
  "steps": [
    {
      "step_number": 1,
      "description": "<what this step does>",
      "required_tools": ["<tool name from the catalog>"],
      "dependencies": [],
      "safety_flags": []
    }
  ]
}
Use only tool names from the catalog. Dependencies reference earlier step numbers.
Recognized safety flags: destructive, network_access, file_modification, system_command, external_dependency.
Reply with JSON only, no commentary.`

// planningMemoryTypes are the memory classes consulted for prompt enrichment.
var planningMemoryTypes = []models.MemoryType{
	models.MemoryToolKnowledge,
	models.MemoryTaskHistory,
	models.MemoryUserPreference,
}

// buildPrompt composes the planning prompt: tool catalog, optional RAG
// block, then the request.
func (p *Planner) buildPrompt(ctx context.Context, userInput string) string {
	var b strings.Builder
	b.WriteString("Available tools:\n")
	b.WriteString(p.formatCatalog())
	b.WriteString("\nUser request: ")
	b.WriteString(userInput)
	prompt := b.String()

	if p.cfg.RAGEnrichment && p.rag != nil {
		enriched, err := p.rag.EnrichPrompt(ctx, prompt, userInput, rag.RetrieveOptions{
			MemoryTypes: planningMemoryTypes,
		})
		if err != nil {
			p.logger.Warn("rag enrichment failed", "error", err)
		} else {
			prompt = enriched
		}
	}
	return prompt
}

func (p *Planner) formatCatalog() string {
	catalog := p.registry.ListAvailableActions()
	families := make([]string, 0, len(catalog))
	for family := range catalog {
		families = append(families, family)
	}
	sort.Strings(families)

	var b strings.Builder
	for _, family := range families {
		actions := catalog[family]
		names := make([]string, 0, len(actions))
		for name := range actions {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(&b, "[%s]\n", family)
		for _, name := range names {
			fmt.Fprintf(&b, "  %s: %s\n", name, actions[name])
		}
	}
	return b.String()
}
