// Package mocks provides shared test doubles for the service interfaces.
//
// Each mock has one function field per method. A nil field falls back to the
// mock's default return values:
//
//	jwt := &mocks.MockJWTService{
//	    ValidateTokenFn: func(ctx context.Context, token string) (*auth.Claims, error) {
//	        return &auth.Claims{ProfileID: profileID}, nil
//	    },
//	}
//
// MockAvatarService records the calls it receives for later assertions.
package mocks
