// Package rbac provides the static role catalog and permission resolver for
// class-scoped authorization.
//
// # Overview
//
// Roles form a small fixed enumeration with a directed inheritance graph:
//
//	admin       - global wildcard; short-circuited by callers, never expanded here
//	instructor  - inherits student; full class management
//	ta          - inherits student; quiz and analytics access, no member management
//	student     - leaf; quiz taking and own-data access
//
// Two deprecated names are accepted on read and coerced: "grader" is an alias
// of "ta" and "user" is an alias of "student".
//
// # Resolution
//
// Resolve walks the inheritance graph depth-first with a visited set, so a
// misconfigured catalog containing a cycle is traversed once and never loops.
// Unknown role names resolve to the empty capability set: a typo'd or retired
// role denies everything rather than failing the request.
//
// Capabilities are namespaced strings such as "manage_quizzes" or
// "quiz.create". The admin wildcard "*" is only ever checked by the
// authorization engine's short-circuit; it is not part of the graph.
package rbac
