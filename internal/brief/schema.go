package brief

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/abelbrown/viralengine/internal/brain"
	"github.com/abelbrown/viralengine/internal/model"
)

// Proof point bounds.
const (
	MinProofPoints = 2
	MaxProofPoints = 6
)

// schemaFields describes the brief JSON object to the generator.
var schemaFields = []brain.SchemaField{
	{Name: "coreTension", Description: "The conflict or frustration the audience is feeling, in one or two sentences.", Required: true},
	{Name: "ourAngle", Description: "The distinctive position our content takes on that tension.", Required: true},
	{Name: "keyClaim", Description: "The single claim the content must land.", Required: true},
	{Name: "proofPoints", Description: "Two to six concrete points backing the key claim, grounded in the evidence.", List: true, Required: true},
	{Name: "whyNow", Description: "Why this matters right now, referencing the signals.", Required: true},
	{Name: "noGoClaims", Description: "Claims the content must not make.", List: true},
}

// ParseContent decodes generator output into brief content and validates
// it. Surrounding prose and markdown code fences are tolerated; type
// mismatches, missing fields and out-of-range lists are reported in a
// *SchemaError.
func ParseContent(raw string) (model.BriefContent, error) {
	obj := extractObject(raw)
	if obj == "" {
		return model.BriefContent{}, &SchemaError{Problems: []string{"no JSON object in response"}}
	}

	var c model.BriefContent
	if err := json.Unmarshal([]byte(obj), &c); err != nil {
		return model.BriefContent{}, &SchemaError{Problems: []string{fmt.Sprintf("invalid JSON: %v", err)}}
	}

	if problems := Validate(c); len(problems) > 0 {
		return c, &SchemaError{Problems: problems}
	}
	return normalize(c), nil
}

// Validate reports every schema violation in c. An empty result means c is
// a valid brief.
func Validate(c model.BriefContent) []string {
	var problems []string
	required := []struct {
		name, value string
	}{
		{"coreTension", c.CoreTension},
		{"ourAngle", c.OurAngle},
		{"keyClaim", c.KeyClaim},
		{"whyNow", c.WhyNow},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			problems = append(problems, f.name+" is required")
		}
	}

	n := 0
	for i, p := range c.ProofPoints {
		if strings.TrimSpace(p) == "" {
			problems = append(problems, fmt.Sprintf("proofPoints[%d] is empty", i))
			continue
		}
		n++
	}
	if n < MinProofPoints || n > MaxProofPoints {
		problems = append(problems, fmt.Sprintf("proofPoints must have %d to %d entries, got %d", MinProofPoints, MaxProofPoints, n))
	}
	return problems
}

func normalize(c model.BriefContent) model.BriefContent {
	c.CoreTension = strings.TrimSpace(c.CoreTension)
	c.OurAngle = strings.TrimSpace(c.OurAngle)
	c.KeyClaim = strings.TrimSpace(c.KeyClaim)
	c.WhyNow = strings.TrimSpace(c.WhyNow)
	for i := range c.ProofPoints {
		c.ProofPoints[i] = strings.TrimSpace(c.ProofPoints[i])
	}
	var nogo []string
	for _, s := range c.NoGoClaims {
		if s = strings.TrimSpace(s); s != "" {
			nogo = append(nogo, s)
		}
	}
	c.NoGoClaims = nogo
	return c
}

// extractObject returns the outermost {...} span of s, or "".
func extractObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}
