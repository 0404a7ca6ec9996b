// Package http provides HTTP handlers and middleware for the class
// scheduling API.
//
// The router exposes the following endpoints:
//   - GET /classes, POST /classes, GET /classes/{id}, PUT /classes/{id},
//     DELETE /classes/{id}: class management endpoints exchanging the
//     `classDTO` payload defined in class_handler.go. Class responses include
//     the expanded session list and the accumulated exception history.
//   - POST /classes/preview: expands a recurrence rule without persisting
//     anything, returning the sessions a create or update would produce.
//   - POST /classes/{id}/detach: splits one session out of a series into its
//     own single-session class, optionally rescheduling it.
//   - DELETE /classes/{id}/sessions/{sessionID}: cancels one session,
//     recording a cancelled exception in its place.
//   - GET /classes/{id}/calendar.ics: the class schedule as an iCalendar
//     feed.
//   - GET /instructors, POST /instructors, GET|PUT|DELETE /instructors/{id}:
//     instructor catalog endpoints exchanging the `instructorDTO` payload
//     defined in instructor_handler.go.
//   - GET /rooms, POST /rooms, GET|PUT|DELETE /rooms/{id}: room catalog
//     endpoints exchanging the `roomDTO` payload defined in room_handler.go.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
