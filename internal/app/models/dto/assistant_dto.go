package dto

// AssistantMessageRequest is one free-text message for the assistant.
type AssistantMessageRequest struct {
	Message string `json:"message" binding:"required,max=4000"`
}
