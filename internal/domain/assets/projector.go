package assets

// View is the flattened read model folded from the append-only task log.
// Nothing here is persisted; it is recomputed on every read so the log
// stays the single source of truth.
type View struct {
	Title           string   `json:"title,omitempty"`
	Description     string   `json:"description,omitempty"`
	OcrText         string   `json:"ocr_text,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	People          []string `json:"people,omitempty"`
	Places          []string `json:"places,omitempty"`
	Organisations   []string `json:"organisations,omitempty"`
	DateRange       string   `json:"date_range,omitempty"`
	Summary         string   `json:"summary,omitempty"`
	DocumentType    string   `json:"document_type,omitempty"`
	DocumentSubtype string   `json:"document_subtype,omitempty"`
	TokensTotal     int      `json:"tokens_total"`
}

// Project folds the completed-task log into the flattened view. Failed and
// skipped entries are ignored; when a task ran more than once the most
// recent result wins. Token totals count every entry, including failures,
// since those calls were billed too.
func Project(completed []CompletedEntry) View {
	byTask := map[string]Result{}
	view := View{}
	for _, entry := range completed {
		view.TokensTotal += tokensOf(entry.Result)
		if entry.Task == "" || entry.Result == nil {
			continue
		}
		if entry.Result.Failed() || entry.Result.Skipped() {
			continue
		}
		byTask[entry.Task] = entry.Result
	}

	view.Title = byTask["generate_title"].Text("title")
	view.Description = firstText(byTask, "description", "context_description", "basic_description")
	view.OcrText = firstText(byTask, "text", "ocr_layout", "ocr", "transcribe_handwriting")
	view.Keywords = stringsOf(byTask["keywords"], "keywords")
	view.People = firstStrings(byTask, "people", "people_and_places", "extract_metadata")
	view.Places = firstStrings(byTask, "places", "people_and_places", "extract_metadata")
	view.Organisations = mergeUnique(
		stringsOf(byTask["people_and_places"], "organisations"),
		stringsOf(byTask["extract_metadata"], "organisations"),
	)
	view.DateRange = dateRange(byTask["extract_metadata"])
	view.Summary = byTask["summarize"].Text("summary")
	view.DocumentType = byTask["classify"].Text("type")
	view.DocumentSubtype = byTask["classify"].Text("subtype")
	return view
}

func dateRange(r Result) string {
	from, to := r.Text("date_from"), r.Text("date_to")
	switch {
	case from == "":
		return to
	case to == "" || to == from:
		return from
	default:
		return from + " - " + to
	}
}

func tokensOf(r Result) int {
	tokens, ok := r["_tokens"].(map[string]any)
	if !ok {
		return 0
	}
	switch v := tokens["total"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func firstText(byTask map[string]Result, key string, tasks ...string) string {
	for _, task := range tasks {
		if s := byTask[task].Text(key); s != "" {
			return s
		}
	}
	return ""
}

func firstStrings(byTask map[string]Result, key string, tasks ...string) []string {
	for _, task := range tasks {
		if out := stringsOf(byTask[task], key); len(out) > 0 {
			return out
		}
	}
	return nil
}

func stringsOf(r Result, key string) []string {
	if r == nil {
		return nil
	}
	raw, ok := r[key].([]any)
	if !ok {
		// Already-typed slices appear when results come straight from a
		// handler rather than a JSON round trip.
		if typed, ok := r[key].([]string); ok {
			return typed
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func mergeUnique(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
