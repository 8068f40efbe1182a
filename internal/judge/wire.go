package judge

import "strings"

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// text joins the text parts of the first candidate.
func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func buildRequest(prompt string, player, opponent Contender) generateRequest {
	parts := []part{{Text: prompt}}
	sides := []struct {
		label string
		c     Contender
	}{{"Player drawing:", player}, {"Opponent drawing:", opponent}}
	for _, side := range sides {
		if side.c.Image == nil || len(side.c.Image.Data) == 0 {
			parts = append(parts, part{Text: side.label + " not provided."})
			continue
		}
		parts = append(parts,
			part{Text: side.label},
			part{InlineData: &inlineData{MIMEType: side.c.Image.MIMEType, Data: side.c.Image.Base64()}},
		)
	}
	return generateRequest{
		Contents:         []content{{Role: "user", Parts: parts}},
		GenerationConfig: generationConfig{Temperature: 0.4, MaxOutputTokens: 512},
	}
}
