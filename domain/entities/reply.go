package entities

// MotionIdle is the neutral motion used whenever no configured motion applies
const MotionIdle = "idle"

// StructuredReply is the record the model is instructed to emit
type StructuredReply struct {
	Text   string `json:"text"`
	Motion string `json:"motion"`
}
