package model

type DialogState string

const (
	StateIdle                 DialogState = "idle"
	StateAwaitingAuth         DialogState = "awaiting_auth"
	StateAwaitingUsername     DialogState = "awaiting_username"
	StateAwaitingAction       DialogState = "awaiting_action"
	StateAwaitingFeedback     DialogState = "awaiting_feedback"
	StateAwaitingRating       DialogState = "awaiting_rating"
	StateAwaitingConfirmation DialogState = "awaiting_feedback_confirmation"
)

type EntityType string

const (
	EntityTypeTelegramUser EntityType = "telegram_user"
)
