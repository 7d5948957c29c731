// Package accounts implements the account authentication and verification
// lifecycle for the learning platform: registration with email-code
// verification, login issuing a signed session token, password reset via
// time-boxed tokens, and linking of third-party identities to local
// accounts. Content delivery, quizzes, and certificates live elsewhere and
// only consume the identity (id, role) established here.
package accounts
