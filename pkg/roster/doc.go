// Package roster implements administrative membership mutations: assigning,
// updating, and revoking class roles, listing class members, and changing a
// user's global roles.
//
// Every mutation follows the same discipline: read the full user record,
// normalize it, apply the change as a pure function of the record, and write
// the whole record back. The service never issues partial updates, so the
// three membership representations cannot diverge across a write.
//
// Role names on these paths are validated strictly. Tolerant coercion is for
// reading legacy data; a deliberate administrative action naming an unknown
// role is rejected with ErrInvalidRole.
package roster
