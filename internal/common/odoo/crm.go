// Package odoo talks to the Odoo CRM over its XML-RPC external API.
package odoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/rpc"
	"strings"
	"sync"

	"github.com/kolo/xmlrpc"

	"lead-intake-workers/internal/common/config"
	apphttp "lead-intake-workers/internal/common/http"
	"lead-intake-workers/internal/common/metrics"
)

const leadModel = "crm.lead"

var (
	// ErrAuthFailed means common.authenticate answered false: bad db, login or password.
	ErrAuthFailed   = errors.New("odoo authentication failed")
	ErrNameRequired = errors.New("lead name is required")
)

// CRMClient is safe for concurrent use. The uid is fetched once and reused.
type CRMClient struct {
	url      string
	database string
	username string
	password string

	transport http.RoundTripper

	mu     sync.Mutex
	uid    int64
	common *xmlrpc.Client
	object *xmlrpc.Client
}

func NewCRMClient(cfg config.OdooConfig) (*CRMClient, error) {
	if err := config.ValidateOdoo(cfg); err != nil {
		return nil, err
	}

	c := &CRMClient{
		url:       strings.TrimRight(cfg.URL, "/"),
		database:  cfg.Database,
		username:  cfg.Username,
		password:  cfg.Password,
		transport: apphttp.NewTransport(config.GetDuration(cfg.Timeout)),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

// dial (re)creates both endpoint clients. Callers hold mu or own c exclusively.
func (c *CRMClient) dial() error {
	common, err := xmlrpc.NewClient(c.url+"/xmlrpc/2/common", c.transport)
	if err != nil {
		return fmt.Errorf("failed to create odoo common client: %w", err)
	}
	object, err := xmlrpc.NewClient(c.url+"/xmlrpc/2/object", c.transport)
	if err != nil {
		common.Close()
		return fmt.Errorf("failed to create odoo object client: %w", err)
	}
	c.common, c.object = common, object
	return nil
}

// Authenticate returns the user id, calling common.authenticate only when no uid is cached.
func (c *CRMClient) Authenticate(ctx context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uid != 0 {
		return c.uid, nil
	}

	var reply interface{}
	args := []interface{}{c.database, c.username, c.password, map[string]interface{}{}}
	if err := call(ctx, c.common, "authenticate", args, &reply); err != nil {
		if errors.Is(err, rpc.ErrShutdown) {
			_ = c.dial()
		}
		return 0, fmt.Errorf("odoo authenticate: %w", err)
	}

	switch v := reply.(type) {
	case int64:
		if v <= 0 {
			return 0, ErrAuthFailed
		}
		c.uid = v
		return v, nil
	case bool:
		return 0, ErrAuthFailed
	default:
		return 0, fmt.Errorf("odoo authenticate: unexpected reply %T", reply)
	}
}

// CreateLead creates a lead holding only its name and phone.
func (c *CRMClient) CreateLead(ctx context.Context, name, phone string) (int64, error) {
	return c.CreateLeadFull(ctx, map[string]interface{}{"name": name, "phone": phone})
}

// CreateLeadFull creates a lead from values in a single create call.
// values must hold a non-empty "name"; empty strings and nils are not sent.
func (c *CRMClient) CreateLeadFull(ctx context.Context, values map[string]interface{}) (int64, error) {
	if name, _ := values["name"].(string); name == "" {
		return 0, ErrNameRequired
	}

	var reply interface{}
	if err := c.executeKw(ctx, "create", []interface{}{EncodeValues(values)}, &reply); err != nil {
		return 0, err
	}

	id, ok := reply.(int64)
	if !ok {
		return 0, fmt.Errorf("odoo create: unexpected reply %T", reply)
	}
	return id, nil
}

// UpdateLead writes values onto lead id and reports Odoo's boolean result.
func (c *CRMClient) UpdateLead(ctx context.Context, id int64, values map[string]interface{}) (bool, error) {
	encoded := EncodeValues(values)
	if len(encoded) == 0 {
		return true, nil
	}

	var reply interface{}
	if err := c.executeKw(ctx, "write", []interface{}{[]interface{}{id}, encoded}, &reply); err != nil {
		return false, err
	}

	ok, _ := reply.(bool)
	return ok, nil
}

func (c *CRMClient) executeKw(ctx context.Context, method string, params []interface{}, reply interface{}) error {
	uid, err := c.Authenticate(ctx)
	if err != nil {
		metrics.CRMRequests.WithLabelValues(method, "auth_failed").Inc()
		return err
	}

	c.mu.Lock()
	object := c.object
	c.mu.Unlock()

	args := []interface{}{c.database, uid, c.password, leadModel, method, params}
	if err := call(ctx, object, "execute_kw", args, reply); err != nil {
		metrics.CRMRequests.WithLabelValues(method, "error").Inc()
		c.resetAfter(err)
		return fmt.Errorf("odoo %s.%s: %w", leadModel, method, err)
	}

	metrics.CRMRequests.WithLabelValues(method, "ok").Inc()
	return nil
}

// resetAfter resets client state after errors that poison it. net/rpc shuts a
// client down for good on a non-2xx reply, and a revoked session comes back as
// an AccessDenied fault.
func (c *CRMClient) resetAfter(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case errors.Is(err, rpc.ErrShutdown):
		c.uid = 0
		_ = c.dial()
	case strings.Contains(err.Error(), "AccessDenied"):
		c.uid = 0
	}
}

// URL is the Odoo base URL, used for links in notifications.
func (c *CRMClient) URL() string {
	return c.url
}

// LeadURL links to the lead form in the Odoo web client.
func (c *CRMClient) LeadURL(id int64) string {
	return fmt.Sprintf("%s/web#id=%d&model=%s&view_type=form", c.url, id, leadModel)
}

func (c *CRMClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return errors.Join(c.common.Close(), c.object.Close())
}

// call runs an XML-RPC call and gives up when ctx ends. kolo/xmlrpc has no
// context support, so the request itself is bounded by the transport timeout.
func call(ctx context.Context, client *xmlrpc.Client, method string, args []interface{}, reply interface{}) error {
	done := client.Go(method, args, reply, make(chan *rpc.Call, 1)).Done

	select {
	case res := <-done:
		return res.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TagReplaceCommand is the many2many "replace all" command (6, 0, ids).
func TagReplaceCommand(ids []int) []interface{} {
	list := make([]interface{}, len(ids))
	for i, id := range ids {
		list[i] = id
	}
	return []interface{}{6, 0, list}
}

// EncodeValues drops unset values and rewrites tag_ids ([]int) as a replace command.
func EncodeValues(values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(values))
	for k, v := range values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		case []int:
			if k == "tag_ids" {
				out[k] = []interface{}{TagReplaceCommand(val)}
				continue
			}
		}
		out[k] = v
	}
	return out
}
