package stage

import "strings"

const (
	defaultCandidateName = "Candidate"
	defaultJobRole       = "this position"
)

// Vars fills the placeholders used by stage texts.
type Vars struct {
	CandidateName string
	JobRole       string
}

// Render substitutes {candidate_name} and {job_role}. Only known tokens are replaced
// so other braces in the text survive untouched.
func Render(text string, v Vars) string {
	name := strings.TrimSpace(v.CandidateName)
	if name == "" {
		name = defaultCandidateName
	}
	role := strings.TrimSpace(v.JobRole)
	if role == "" {
		role = defaultJobRole
	}
	return strings.NewReplacer(
		"{candidate_name}", name,
		"{job_role}", role,
	).Replace(text)
}

// AckFor returns the acknowledgement spoken on entering s. Forced entries use the shorter
// fallback text when one is configured.
func AckFor(s Stage, forced bool, v Vars) string {
	text := s.Ack
	if forced && s.FallbackAck != "" {
		text = s.FallbackAck
	}
	if text == "" {
		text = "Let's continue to the " + strings.ToLower(s.Label) + " part."
	}
	return Render(text, v)
}
