package domain

// FallbackCritique is shown when the model did not emit a critique.
const FallbackCritique = "無法生成反饋。"

// Critique is the coaching feedback the model appends after the reply.
// Its expected shape is "[score] - [critique] - [improvement]" but it is
// carried as opaque text.
type Critique struct {
	Text     string
	Fallback bool
}
