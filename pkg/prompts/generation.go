// Package prompts builds generation prompts from wizard configurations.
package prompts

import (
	"fmt"
	"strings"

	"github.com/appforge-inc/forge-engine/pkg/models"
)

// Mode selects which responsiveness guidance is prepended to a prompt.
type Mode string

const (
	ModeMobileFirst  Mode = "mobile-first"
	ModeDesktopFirst Mode = "desktop-first"
)

// Keyword sets for the responsiveness heuristic. Desktop wins only when
// desktop keywords appear and mobile keywords do not; everything else
// defaults to mobile-first.
var (
	desktopKeywords = []string{
		"admin", "dashboard", "crm", "erp", "enterprise", "analytics",
		"back office", "backoffice", "data table", "spreadsheet",
	}
	mobileKeywords = []string{
		"mobile", "app", "touch", "pwa", "phone", "swipe", "on the go",
	}
)

// ResponsivenessMode inspects the custom prompt (if present) and the
// configuration's app type and description and picks a layout mode.
func ResponsivenessMode(cfg *models.AppConfig, customPrompt string) Mode {
	haystack := strings.ToLower(customPrompt)
	if cfg != nil {
		haystack += " " + strings.ToLower(cfg.AppType) + " " + strings.ToLower(cfg.Description)
	}

	if containsAny(haystack, desktopKeywords) && !containsAny(haystack, mobileKeywords) {
		return ModeDesktopFirst
	}
	return ModeMobileFirst
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}

const systemInstructionBase = `You are an expert web application generator.
Produce a complete, self-contained single-file HTML application: all CSS in a
<style> tag and all JavaScript in a <script> tag, no external build steps.
Return only the application code inside a single ` + "```html" + ` fenced block.
The application must be functional as-is when saved to an .html file.`

const mobileFirstInstruction = systemInstructionBase + `
Write mobile-first CSS: base styles target small screens, then widen with
min-width media queries (480px, 768px, 1024px). Touch targets at least 44px.`

const desktopFirstInstruction = systemInstructionBase + `
Write desktop-first CSS: base styles target wide screens, then narrow with
max-width media queries (1024px, 768px, 480px). Keep dense layouts usable
when collapsed.`

// SystemInstruction returns the system instruction template for a mode.
// The templates differ only in breakpoint ordering guidance.
func SystemInstruction(mode Mode) string {
	if mode == ModeDesktopFirst {
		return desktopFirstInstruction
	}
	return mobileFirstInstruction
}

// BuildGenerationPrompt synthesizes the user prompt from a wizard
// configuration. A caller-supplied custom prompt supersedes this entirely.
func BuildGenerationPrompt(cfg *models.AppConfig) string {
	var prompt strings.Builder

	prompt.WriteString("# Application Request\n\n")
	if cfg.Name != "" {
		prompt.WriteString(fmt.Sprintf("Build a web application named %q.\n", cfg.Name))
	} else {
		prompt.WriteString("Build a web application.\n")
	}
	if cfg.Description != "" {
		prompt.WriteString(fmt.Sprintf("Description: %s\n", cfg.Description))
	}

	prompt.WriteString("\n## Requirements\n\n")
	if cfg.AppType != "" {
		prompt.WriteString(fmt.Sprintf("- Application type: %s\n", cfg.AppType))
	}
	if cfg.Stack != "" {
		prompt.WriteString(fmt.Sprintf("- Technology approach: %s\n", cfg.Stack))
	}
	if cfg.CSSFramework != "" {
		prompt.WriteString(fmt.Sprintf("- CSS framework: %s (loaded from a CDN)\n", cfg.CSSFramework))
	}
	if cfg.Theme != "" {
		prompt.WriteString(fmt.Sprintf("- Visual theme: %s\n", cfg.Theme))
	}
	if cfg.Layout != "" {
		prompt.WriteString(fmt.Sprintf("- Layout: %s\n", cfg.Layout))
	}

	if len(cfg.Features) > 0 {
		prompt.WriteString("\n## Features\n\n")
		for _, f := range cfg.Features {
			prompt.WriteString(fmt.Sprintf("- %s\n", f))
		}
	}

	if len(cfg.Integrations) > 0 {
		prompt.WriteString("\n## Integrations\n\n")
		for _, in := range cfg.Integrations {
			prompt.WriteString(fmt.Sprintf("- %s (stub the API calls with realistic placeholder data)\n", in))
		}
	}

	prompt.WriteString("\nReturn the complete application as a single HTML file.\n")

	return prompt.String()
}
