package session

import "context"

// Principal is the signed-in identity as reported by the external
// identity provider. Profile fields feed checkout prefill.
type Principal struct {
	ID    string
	Name  string
	Email string
	Phone string
}

// Provider is the external identity provider contract. The client never
// implements authentication itself; it only asks the provider who is
// signed in and for a fresh token.
type Provider interface {
	SignedIn() bool
	Principal() (Principal, bool)
	FetchToken(ctx context.Context) (string, error)
}

// StaticProvider is a fixed-identity Provider for wiring the BFF in
// environments where the identity provider hands the process a service
// principal and token up front. Real deployments plug in their own
// Provider implementation.
type StaticProvider struct {
	Identity Principal
	Bearer   string
}

func (p *StaticProvider) SignedIn() bool { return p.Bearer != "" }

func (p *StaticProvider) Principal() (Principal, bool) {
	if !p.SignedIn() {
		return Principal{}, false
	}
	return p.Identity, true
}

func (p *StaticProvider) FetchToken(_ context.Context) (string, error) {
	return p.Bearer, nil
}
