package services

import (
	"fmt"

	"tickethub/utils"
)

const tokenBytes = 20

// TicketIssuer produces the opaque per-ticket token used as the check-in
// credential. Generation is stateless; global uniqueness is enforced by the
// unique index on the tickets collection, and the coordinator retries with a
// fresh token if an insert ever collides.
type TicketIssuer struct{}

func NewTicketIssuer() *TicketIssuer {
	return &TicketIssuer{}
}

func (i *TicketIssuer) NextToken() (string, error) {
	token, err := utils.GenerateCode(tokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate ticket token: %w", err)
	}
	return token, nil
}
