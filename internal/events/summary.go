package events

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	dataReportRe    = regexp.MustCompile(`(?i)\b(data reported|data collected|modules? reported)\b`)
	reportedNamesRe = regexp.MustCompile(`(?i)^\s*(.+?)\s+data reported\s*$`)
	moduleCountRe   = regexp.MustCompile(`(?i)^\d+\s+modules?$`)
)

// bundleMessage summarizes the members of a bundle. Any panic degrades to
// the fixed parsing-error label; the bundle itself is still emitted.
func (b *Bundler) bundleMessage(members []Event) (out string) {
	defer func() {
		if r := recover(); r != nil {
			b.logf("WARNING: bundle summary failed for %d events: %v", len(members), r)
			out = parsingError
		}
	}()

	allReports := true
	for _, e := range members {
		if !isDataReport(b.effectiveMessage(e)) {
			allReports = false
			break
		}
	}

	if allReports {
		var names []string
		for _, e := range members {
			names = append(names, payloadModuleNames(e.Payload)...)
			names = append(names, namesFromMessage(e.Message)...)
		}
		if names = dedupeNames(names); len(names) > 0 {
			return renderModules(names)
		}
	}

	var mined []string
	for _, e := range members {
		mined = append(mined, payloadModuleNames(e.Payload)...)
	}
	if mined = dedupeNames(mined); len(mined) > 0 {
		return renderModules(mined)
	}

	return countsSummary(members)
}

func isDataReport(msg string) bool {
	return dataReportRe.MatchString(msg)
}

// payloadModuleNames collects module names from the structured fields a
// reporting agent may send. Snake and camel case spellings are both read.
func payloadModuleNames(payload any) []string {
	m, ok := asMap(payload)
	if !ok {
		return nil
	}
	var names []string
	names = append(names, moduleNames(listField(m, "modules_processed"))...)
	names = append(names, moduleNames(listField(m, "enabled_modules"))...)
	names = append(names, moduleNames(listField(m, "enabledModules"))...)
	names = append(names, moduleNames(nestedList(m, "metadata", "enabledModules"))...)
	names = append(names, moduleNames(nestedList(m, "metadata", "enabled_modules"))...)
	names = append(names, moduleNames(listField(m, "modules"))...)
	if mods, ok := asMap(m["modules"]); ok {
		names = append(names, sortedKeys(mods)...)
	}
	return names
}

// namesFromMessage reads "<A>, <B> data reported" back into module names.
func namesFromMessage(msg string) []string {
	match := reportedNamesRe.FindStringSubmatch(msg)
	if match == nil {
		return nil
	}
	var names []string
	for _, part := range strings.Split(match[1], ",") {
		part = strings.TrimSpace(part)
		if part == "" || moduleCountRe.MatchString(part) {
			continue
		}
		names = append(names, part)
	}
	return names
}

// moduleNames accepts lists of plain strings or of objects carrying a
// name/module/id field.
func moduleNames(list []any) []string {
	var names []string
	for _, item := range list {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				names = append(names, s)
			}
		case map[string]any:
			if s := firstString(v, "name", "module", "id"); s != "" {
				names = append(names, s)
			}
		}
	}
	return names
}

func dedupeNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		key := strings.ToLower(displayModuleName(n))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, n)
	}
	return out
}

// renderModules formats module names as a "data reported" label.
func renderModules(names []string) string {
	names = dedupeNames(names)
	switch {
	case len(names) == 0:
		return genericPreview
	case len(names) > 3:
		return fmt.Sprintf("%d modules data reported", len(names))
	}
	display := make([]string, len(names))
	for i, n := range names {
		display[i] = displayModuleName(n)
	}
	return strings.Join(display, ", ") + " data reported"
}

// displayModuleName turns "managed_installs" into "Managed Installs". A
// Caser is stateful, so one is built per call.
func displayModuleName(name string) string {
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.English, cases.NoLower).String(name)
}

type countClause struct {
	kind     Kind
	singular string
	plural   string
}

var countClauses = []countClause{
	{KindError, "error", "errors"},
	{KindWarning, "warning", "warnings"},
	{KindSuccess, "success event", "success events"},
	{KindInfo, "info event", "info events"},
	{KindSystem, "system event", "system events"},
}

func countsSummary(members []Event) string {
	counts := make(map[Kind]int)
	for _, e := range members {
		counts[e.Kind]++
	}
	var parts []string
	for _, c := range countClauses {
		n := counts[c.kind]
		if n == 0 {
			continue
		}
		label := c.plural
		if n == 1 {
			label = c.singular
		}
		parts = append(parts, fmt.Sprintf("%d %s", n, label))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d events occurred", len(members))
	}
	return strings.Join(parts, ", ")
}
