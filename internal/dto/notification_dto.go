package dto

type CreateNotificationRequest struct {
	Title          string         `json:"title" binding:"required"`
	Message        string         `json:"message" binding:"required"`
	Type           string         `json:"type" binding:"required,oneof=info success warning error system"`
	Priority       string         `json:"priority" binding:"omitempty,oneof=low medium high urgent"`
	Category       string         `json:"category"`
	Link           string         `json:"link" binding:"omitempty,url"`
	Persistent     bool           `json:"persistent"`
	AutoClose      bool           `json:"auto_close"`
	AutoCloseDelay int            `json:"auto_close_delay" binding:"omitempty,min=0"`
	Metadata       map[string]any `json:"metadata"`
}

// SendNotificationRequest is the admin variant that targets another user.
type SendNotificationRequest struct {
	UserID string `json:"user_id" binding:"required,uuid"`
	CreateNotificationRequest
}

type ListNotificationsQuery struct {
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Read     *bool  `form:"read"`
	Type     string `form:"type" binding:"omitempty,oneof=info success warning error system"`
	Category string `form:"category"`
}

type MarkAllReadQuery struct {
	Type     string `form:"type" binding:"omitempty,oneof=info success warning error system"`
	Category string `form:"category"`
}

type SearchNotificationsQuery struct {
	Query string `form:"q" binding:"required"`
	Limit int    `form:"limit" binding:"omitempty,min=1,max=100"`
}
