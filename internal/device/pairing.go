package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/bringyour/byctl/internal/api"
	"github.com/bringyour/byctl/internal/poll"
)

// StatusChecker is the remote half of a pairing wait.
type StatusChecker interface {
	AssociationStatus(ctx context.Context, codeType api.CodeType, code string) (api.AssociationStatus, error)
}

// Association is the outcome of a resolved pairing code.
type Association struct {
	CodeType    api.CodeType `json:"code_type" yaml:"code_type"`
	Code        string       `json:"code" yaml:"code"`
	NetworkName string       `json:"network_name" yaml:"network_name"`
}

// StatusCheck returns the check for code against the endpoint of codeType.
func StatusCheck(client StatusChecker, codeType api.CodeType, code string) (poll.CheckFunc[Association], error) {
	codeType, err := api.ParseCodeType(string(codeType))
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code required", api.ErrInvalidArgument)
	}

	return func(ctx context.Context) (poll.Result[Association], error) {
		status, err := client.AssociationStatus(ctx, codeType, code)
		if err != nil {
			return poll.Result[Association]{}, err
		}
		if status.Pending {
			return poll.Waiting[Association](), nil
		}
		name := strings.TrimSpace(status.AssociatedNetworkName)
		if name == "" {
			return poll.Result[Association]{Payload: Association{CodeType: codeType, Code: code}}, nil
		}
		return poll.Ready(Association{CodeType: codeType, Code: code, NetworkName: name}), nil
	}, nil
}

// WaitForCode starts polling code until it resolves, fails or ctx ends.
func WaitForCode(ctx context.Context, client StatusChecker, codeType api.CodeType, code string, opts ...poll.Option) (*poll.Session[Association], error) {
	check, err := StatusCheck(client, codeType, code)
	if err != nil {
		return nil, err
	}
	opts = append([]poll.Option{poll.WithName(string(codeType) + ":" + strings.TrimSpace(code))}, opts...)
	return poll.Start(ctx, check, opts...), nil
}
