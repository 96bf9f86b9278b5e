package checkout

import (
	"errors"
	"fmt"
	"sync"

	apperrors "github.com/bakehouse-in/storefront/errors"
	"github.com/bakehouse-in/storefront/models"
	"github.com/go-playground/validator/v10"
)

// Step is the checkout wizard position.
type Step int

const (
	StepAddress Step = iota + 1
	StepPayment
	StepConfirm
)

// Method is the selected payment method.
type Method string

const (
	MethodCOD    Method = "cod"
	MethodOnline Method = "online"
)

// Session is the transient checkout state: current step, selections and
// the processing flag. It is owned by the orchestrator and discarded on
// completion or navigation away; nothing here is persisted.
type Session struct {
	mu         sync.Mutex
	step       Step
	address    *models.Address
	method     Method
	processing bool

	validate *validator.Validate
	pincodes []string

	// paymentCh hands the opened gateway session to whoever is driving
	// the UI, without blocking the orchestrator.
	paymentCh chan models.PaymentSession
}

// NewSession starts a checkout at the address step. pincodes is the
// serviceable-pincode allowlist; empty means every pincode is accepted.
func NewSession(pincodes []string) *Session {
	return &Session{
		step:      StepAddress,
		validate:  validator.New(),
		pincodes:  pincodes,
		paymentCh: make(chan models.PaymentSession, 1),
	}
}

// Step returns the current wizard position.
func (s *Session) Step() Step {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SelectAddress validates and records the delivery address. Validation
// failures never reach the network layer.
func (s *Session) SelectAddress(addr models.Address) error {
	if err := s.validate.Struct(addr); err != nil {
		return apperrors.Wrap(apperrors.ErrValidation, err)
	}
	if !s.serviceable(addr.Pincode) {
		return apperrors.Wrap(apperrors.ErrValidation,
			fmt.Errorf("delivery is not available for pincode %s", addr.Pincode))
	}

	s.mu.Lock()
	s.address = &addr
	s.mu.Unlock()
	return nil
}

func (s *Session) serviceable(pincode string) bool {
	if len(s.pincodes) == 0 {
		return true
	}
	for _, p := range s.pincodes {
		if p == pincode {
			return true
		}
	}
	return false
}

// SelectMethod records the payment method.
func (s *Session) SelectMethod(m Method) error {
	if m != MethodCOD && m != MethodOnline {
		return apperrors.Wrap(apperrors.ErrValidation, fmt.Errorf("unknown payment method %q", m))
	}
	s.mu.Lock()
	s.method = m
	s.mu.Unlock()
	return nil
}

// Next advances one step, gated by per-step completeness.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.step {
	case StepAddress:
		if s.address == nil {
			return apperrors.Wrap(apperrors.ErrValidation, errors.New("select a delivery address first"))
		}
		s.step = StepPayment
	case StepPayment:
		if s.method == "" {
			return apperrors.Wrap(apperrors.ErrValidation, errors.New("select a payment method first"))
		}
		s.step = StepConfirm
	case StepConfirm:
		return apperrors.Wrap(apperrors.ErrValidation, errors.New("already at the confirmation step"))
	}
	return nil
}

// Back moves one step backwards; a no-op at the address step.
func (s *Session) Back() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step > StepAddress {
		s.step--
	}
}

// Address returns the selected address, if any.
func (s *Session) Address() (models.Address, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.address == nil {
		return models.Address{}, false
	}
	return *s.address, true
}

// Method returns the selected payment method.
func (s *Session) Method() Method {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.method
}

// Processing reports whether a confirm is in flight.
func (s *Session) Processing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.processing
}

// begin gates the terminal protocols: the session must be at the confirm
// step with both selections made, and only one confirm may run at a time.
func (s *Session) begin() (models.Address, Method, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.step != StepConfirm {
		return models.Address{}, "", apperrors.Wrap(apperrors.ErrValidation, errors.New("checkout is not at the confirmation step"))
	}
	if s.address == nil {
		return models.Address{}, "", apperrors.Wrap(apperrors.ErrValidation, errors.New("no delivery address selected"))
	}
	if s.method == "" {
		return models.Address{}, "", apperrors.Wrap(apperrors.ErrValidation, errors.New("no payment method selected"))
	}
	if s.processing {
		return models.Address{}, "", apperrors.Wrap(apperrors.ErrValidation, errors.New("checkout already in progress"))
	}
	s.processing = true
	return *s.address, s.method, nil
}

// finish clears the processing flag so the UI is never left stuck.
func (s *Session) finish() {
	s.mu.Lock()
	s.processing = false
	s.mu.Unlock()
}

// notePaymentSession publishes the gateway session opened for this
// checkout. Non-blocking; only the latest attempt's session is kept.
func (s *Session) notePaymentSession(ps models.PaymentSession) {
	select {
	case s.paymentCh <- ps:
	default:
	}
}

// PaymentSession delivers the gateway session once the online path has
// opened one.
func (s *Session) PaymentSession() <-chan models.PaymentSession {
	return s.paymentCh
}
