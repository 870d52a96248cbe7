// Package gateway contains the remote ERP gateway bounded context.
// It defines the ports for authenticated access to the remote service:
// token lifecycle management, request execution and the wire record format.
//
// Design Pattern: Ports & Adapters
//   - Ports (interfaces) are defined here in the domain layer
//   - Adapters (implementations) are in the infrastructure layer
package gateway
