package domain

const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
)

const (
	DeliveryPending   = "PENDING"
	DeliveryDelivered = "DELIVERED"
	DeliveryRead      = "READ"
)

const (
	TargetModeSelected = "selected"
	TargetModeAll      = "all"
)

// WebSocket event names pushed to clients.
const (
	EventPresenceChanged      = "PresenceChanged"
	EventNotificationReceived = "NotificationReceived"
	EventDeliveryUpdated      = "DeliveryUpdated"
)
