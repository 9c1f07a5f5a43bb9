package linkup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dmitrijs2005/glucolink/internal/common"
)

const loginPath = "/llu/auth/login"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates against baseURL and returns a tagged result: either an
// issued token or a redirect to another region. Credential rejections come
// back as typed errors and must not be retried by the caller.
func (c *Client) Login(ctx context.Context, baseURL, email string, password []byte) (*LoginResult, error) {
	body, err := json.Marshal(loginRequest{Email: email, Password: string(password)})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	defer common.WipeByteArray(body)

	respBody, err := c.do(ctx, http.MethodPost, baseURL+loginPath, nil, body)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}

	var env apiEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("login: decode response: %w", err)
	}
	if env.Status != statusOK {
		return nil, fmt.Errorf("login: %w", statusError(env.Status, env.Error))
	}

	var data loginData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("login: decode response data: %w", err)
	}

	switch {
	case data.Redirect:
		if data.Region == "" {
			return nil, errors.New("login: redirect response without region")
		}
		c.logger.Info(ctx, "login redirected to regional endpoint", "region", data.Region)
		return &LoginResult{Redirect: data.Region}, nil

	case data.AuthTicket != nil && data.User != nil:
		auth := &Auth{
			UserID: data.User.ID,
			Token:  data.AuthTicket.Token,
		}
		if data.AuthTicket.Expires > 0 {
			auth.Expires = time.Unix(data.AuthTicket.Expires, 0)
		}
		if auth.UserID == "" || auth.Token == "" {
			return nil, errors.New("login: incomplete auth ticket")
		}
		return &LoginResult{Auth: auth}, nil

	default:
		return nil, errors.New("login: response carries neither ticket nor redirect")
	}
}
