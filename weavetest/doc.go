/*
Package weavetest provides mocks and helpers for testing the issuance
engine: configurable doubles for allocation targets, the pause flag and
the cross-domain message relay, together with address helpers.

Mocks implement the interfaces declared by the consumer packages
structurally, so this package does not depend on any extension.
*/
package weavetest
