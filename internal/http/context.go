package http

import "context"

type contextKey string

const (
	classIDContextKey      contextKey = "class_id"
	sessionIDContextKey    contextKey = "session_id"
	instructorIDContextKey contextKey = "instructor_id"
	roomIDContextKey       contextKey = "room_id"
)

// ContextWithClassID injects the class identifier resolved from the request path.
func ContextWithClassID(ctx context.Context, classID string) context.Context {
	return context.WithValue(ctx, classIDContextKey, classID)
}

// ClassIDFromContext extracts a class identifier previously associated with the context.
func ClassIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(classIDContextKey).(string)
	return id, ok
}

// ContextWithSessionID injects the session identifier resolved from the request path.
func ContextWithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey, sessionID)
}

// SessionIDFromContext extracts a session identifier previously associated with the context.
func SessionIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDContextKey).(string)
	return id, ok
}

// ContextWithInstructorID injects the instructor identifier resolved from the request path.
func ContextWithInstructorID(ctx context.Context, instructorID string) context.Context {
	return context.WithValue(ctx, instructorIDContextKey, instructorID)
}

// InstructorIDFromContext extracts an instructor identifier previously associated with the context.
func InstructorIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(instructorIDContextKey).(string)
	return id, ok
}

// ContextWithRoomID injects the room identifier resolved from the request path.
func ContextWithRoomID(ctx context.Context, roomID string) context.Context {
	return context.WithValue(ctx, roomIDContextKey, roomID)
}

// RoomIDFromContext extracts a room identifier previously associated with the context.
func RoomIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(roomIDContextKey).(string)
	return id, ok
}
