// Package invoice holds the canonical invoice model shared by every stage of
// the delivery pipeline: the source invoice decoded from the queue, the
// target-neutral external invoice handed to a delivery client, the closed set
// of sync outcomes, and the pure retry policy that maps an attempt to a queue
// action.
//
// Ports implemented elsewhere:
//   - CustomerMapper: resolves a source customer account to an external contact id
//   - Transformer: converts a SourceInvoice into an ExternalInvoice
//   - DeliveryClient: posts an ExternalInvoice to one accounting backend
//
// Nothing in this package performs I/O.
package invoice
