// Package domain defines the core business types for the guardrail gateway.
//
// This package contains pure domain logic with ZERO external dependencies outside the
// Go standard library. All types in this package are:
//
// - Independent of infrastructure (no database, HTTP, gRPC, etc.)
// - Technology-agnostic (no framework coupling)
// - Testable in isolation without mocks
//
// Other packages (identity, intent, policy, audit, gateway) implement behaviour
// around these types and depend on them. The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
