package invoice

import "context"

// CustomerMapper resolves a source customer account to the contact id used by
// the target accounting system. Resolve never fails: unknown accounts are
// returned unchanged. Implementations must be safe for concurrent use.
type CustomerMapper interface {
	Resolve(ctx context.Context, customerAccount string) string
}

// Transformer converts a SourceInvoice into the target-neutral ExternalInvoice.
type Transformer interface {
	Transform(ctx context.Context, src *SourceInvoice) (*ExternalInvoice, error)
}

// DeliveryClient posts an ExternalInvoice to one accounting backend and
// classifies the result. It never returns an error: every failure is folded
// into the returned outcome.
type DeliveryClient interface {
	CreateInvoice(ctx context.Context, inv *ExternalInvoice) SyncOutcome
}
