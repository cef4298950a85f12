package handlers

// ErrorResponse is the JSON body every failing endpoint returns. The
// message field is what streaming clients surface to the user.
type ErrorResponse struct {
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// VADResponse carries the voice probability for one audio chunk.
type VADResponse struct {
	VoiceProbability float64 `json:"voiceProbability"`
}

// RoleResponse is returned by object identification.
type RoleResponse struct {
	Role string `json:"role"`
}
