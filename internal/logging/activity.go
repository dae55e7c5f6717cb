package logging

import (
	"log/slog"
	"time"
)

// Activity represents a supervisor lifecycle event
type Activity struct {
	Timestamp    time.Time
	InstanceID   string
	ActivityType string
	Description  string
	Metadata     map[string]any
	Success      bool
	ErrorMessage string
}

// Activity type constants
const (
	ActivityServerStart   = "server.start"
	ActivityServerStop    = "server.stop"
	ActivityServerRestart = "server.restart"
	ActivityServerQuit    = "server.quit"
	ActivityLoggingToggle = "server.logging"
	ActivityRatingRange   = "server.elo_range"
	ActivityCommandReject = "command.reject"
)

// LogActivity writes an activity record to the global logger
func LogActivity(activity Activity) {
	WriteActivity(L(), activity)
}

// WriteActivity writes an activity record to the given logger
func WriteActivity(logger *slog.Logger, activity Activity) {
	if activity.Timestamp.IsZero() {
		activity.Timestamp = time.Now()
	}

	attrs := []any{
		slog.String("activity", activity.ActivityType),
		slog.Bool("success", activity.Success),
		slog.Time("at", activity.Timestamp),
	}
	if activity.InstanceID != "" {
		attrs = append(attrs, slog.String("instance_id", activity.InstanceID))
	}
	if activity.ErrorMessage != "" {
		attrs = append(attrs, slog.String("error", activity.ErrorMessage))
	}
	for key, value := range activity.Metadata {
		attrs = append(attrs, slog.Any(key, value))
	}

	if activity.Success {
		logger.Info(activity.Description, attrs...)
		return
	}
	logger.Warn(activity.Description, attrs...)
}

// LogServerActivity logs a lifecycle event for one service instance
func LogServerActivity(instanceID, activityType, description string, success bool, err error) {
	activity := Activity{
		InstanceID:   instanceID,
		ActivityType: activityType,
		Description:  description,
		Success:      success,
	}
	if err != nil {
		activity.ErrorMessage = err.Error()
	}
	LogActivity(activity)
}
