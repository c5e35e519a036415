// Package vast implements the platform client for Vast.ai.
package vast

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

const (
	// PlatformName is the registry key for this client.
	PlatformName = "vast"

	defaultBaseURL = "https://console.vast.ai/api/v0"

	// Cost-optimized creation defaults: cheap GPU, minimal disk, hard price
	// ceiling. Caller overrides may lower the price but never raise it.
	defaultGPUName   = "GTX_1070"
	defaultImage     = "pytorch/pytorch"
	defaultDiskGB    = 10
	maxHourlyPrice   = 0.50
	defaultSSHUser   = "root"
	executionTimeout = 30 * time.Second
	apiTimeout       = 30 * time.Second
)

// Options configures a Vast.ai client.
type Options struct {
	APIKey string
	Logger *zap.Logger
	Runner util.Runner

	// AllowSimulation enables the fabricated-output fallback when no real
	// SSH channel is available or the SSH invocation fails. Off by default:
	// a failed remote command then stays a failure.
	AllowSimulation bool

	// BaseURL overrides the API endpoint, used by tests.
	BaseURL string
	// HTTPClient overrides the transport, used by tests.
	HTTPClient *http.Client
}

// Client talks to the Vast.ai REST API.
type Client struct {
	Options
}

var _ platform.Client = &Client{}

// NewClient returns a Vast.ai platform client.
func NewClient(option Options) (*Client, error) {
	if option.APIKey == "" {
		return nil, fmt.Errorf("empty APIKey is invalid")
	}
	if option.Logger == nil {
		return nil, fmt.Errorf("nil Logger is invalid")
	}
	if option.Runner == nil {
		return nil, fmt.Errorf("nil Runner is invalid")
	}
	if option.BaseURL == "" {
		option.BaseURL = defaultBaseURL
	}
	if option.HTTPClient == nil {
		option.HTTPClient = &http.Client{Timeout: apiTimeout}
	}
	return &Client{
		Options: option,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// ListInstances returns every instance on the account. Transport and auth
// failures surface as a ProviderError.
func (c *Client) ListInstances(ctx context.Context) ([]platform.InstanceInfo, error) {
	var payload struct {
		Instances []map[string]interface{} `json:"instances"`
	}
	if err := c.do(ctx, http.MethodGet, "/instances/", nil, &payload); err != nil {
		c.Logger.Error("Cannot list instances",
			zap.Error(err),
		)
		return nil, platform.NewProviderError(PlatformName, "list instances", err)
	}

	instances := make([]platform.InstanceInfo, 0, len(payload.Instances))
	for _, raw := range payload.Instances {
		instances = append(instances, c.createInstanceInfo(raw))
	}
	return instances, nil
}

// GetInstance filters the account listing by id. Not found and transport
// failures both come back absent; get runs inside polling loops and must not
// abort them. The transport failure is already logged by ListInstances.
func (c *Client) GetInstance(ctx context.Context, id string) (*platform.InstanceInfo, error) {
	instances, err := c.ListInstances(ctx)
	if err != nil {
		return nil, nil
	}
	for i := range instances {
		if instances[i].ID == id {
			return &instances[i], nil
		}
	}
	return nil, nil
}

// CreateInstance launches a new rental with cost-optimized defaults.
func (c *Client) CreateInstance(ctx context.Context, req platform.CreateInstanceRequest) (*platform.InstanceInfo, error) {
	params := map[string]interface{}{
		"num_gpus":          "1",
		"gpu_name":          defaultGPUName,
		"image":             defaultImage,
		"disk_gb":           strconv.Itoa(defaultDiskGB),
		"price":             fmt.Sprintf("%.2f", maxHourlyPrice),
		"direct_port_count": "1",
		"use_jupyter_lab":   false,
		"auto_destroy":      true,
	}
	if req.GPUType != "" {
		params["gpu_name"] = req.GPUType
	}
	if req.Image != "" {
		params["image"] = req.Image
	}
	if req.InstanceType != "" {
		params["instance_type"] = req.InstanceType
	}
	for key, value := range req.AdditionalParams {
		// Cost-sensitive keys only move down from their defaults; a raise
		// is dropped with a warning.
		switch key {
		case "price":
			if asked, err := strconv.ParseFloat(value, 64); err == nil && asked < maxHourlyPrice {
				params[key] = fmt.Sprintf("%.2f", asked)
				continue
			}
		case "disk_gb":
			if asked, err := strconv.ParseFloat(value, 64); err == nil && asked < defaultDiskGB {
				params[key] = value
				continue
			}
		case "direct_port_count":
			// Extra direct ports bill per port; the single SSH port stands.
		default:
			params[key] = value
			continue
		}
		c.Logger.Warn("Ignoring cost-raising override",
			zap.String("Param", key),
			zap.String("Value", value),
		)
	}

	c.Logger.Info("Creating cost-optimized instance",
		zap.Any("GPU", params["gpu_name"]),
		zap.Any("MaxPrice", params["price"]),
		zap.Any("DiskGB", params["disk_gb"]),
		zap.Any("Image", params["image"]),
	)

	var resp map[string]interface{}
	if err := c.do(ctx, http.MethodPut, "/asks/", params, &resp); err != nil {
		return nil, platform.NewProviderError(PlatformName, "create instance", err)
	}

	contract, ok := resp["new_contract"]
	if !ok {
		return nil, platform.NewProviderError(PlatformName, "create instance",
			fmt.Errorf("response missing new_contract: %v", resp))
	}

	id := rawID(contract)
	c.Logger.Info("Instance created",
		zap.String("InstanceID", id),
	)

	return &platform.InstanceInfo{
		ID:       id,
		Platform: PlatformName,
		Status:   platform.StatusPending,
		RawData:  resp,
	}, nil
}

// destroyStrategy is one mechanism to tear an instance down. The API has
// been unreliable across versions, so destruction walks an ordered list.
type destroyStrategy struct {
	name string
	fn   func(ctx context.Context, id string) error
}

func (c *Client) destroyStrategies() []destroyStrategy {
	return []destroyStrategy{
		{
			name: "destroy endpoint",
			fn: func(ctx context.Context, id string) error {
				instance, err := strconv.Atoi(id)
				if err != nil {
					return fmt.Errorf("non-numeric instance id %q", id)
				}
				return c.do(ctx, http.MethodPost, "/instances/destroy/", map[string]interface{}{"instance": instance}, nil)
			},
		},
		{
			name: "direct delete",
			fn: func(ctx context.Context, id string) error {
				return c.do(ctx, http.MethodDelete, "/instances/"+id+"/", nil, nil)
			},
		},
		{
			name: "state update",
			fn: func(ctx context.Context, id string) error {
				return c.do(ctx, http.MethodPut, "/instances/"+id+"/", map[string]interface{}{"state": "destroyed"}, nil)
			},
		},
	}
}

// DestroyInstance tries every destroy mechanism in order and reports false
// when all fail. It never panics and never returns an error: a destroy
// failure must not take the workflow down, but the operator has to know a
// billed resource may still be running.
func (c *Client) DestroyInstance(ctx context.Context, id string) bool {
	for _, strategy := range c.destroyStrategies() {
		if err := strategy.fn(ctx, id); err != nil {
			c.Logger.Warn("Destroy mechanism failed",
				zap.String("InstanceID", id),
				zap.String("Mechanism", strategy.name),
				zap.Error(err),
			)
			continue
		}
		c.Logger.Info("Instance destruction initiated",
			zap.String("InstanceID", id),
			zap.String("Mechanism", strategy.name),
		)
		return true
	}

	c.Logger.Warn("Could not destroy instance via API; destroy it manually in the Vast.ai console to avoid charges",
		zap.String("InstanceID", id),
		zap.String("Console", "https://cloud.vast.ai/instances/"),
	)
	return false
}

// ExecuteCommand runs a command on the instance over SSH. An absent or
// non-running instance fails fast without error. Missing SSH info or an SSH
// failure fall back to simulation only when the client allows it.
func (c *Client) ExecuteCommand(ctx context.Context, id string, command []string, workingDir string) platform.ExecutionResult {
	instance, err := c.GetInstance(ctx, id)
	if err != nil || instance == nil {
		return platform.FailedResult("instance %s not found", id)
	}
	if instance.Status != platform.StatusRunning {
		return platform.FailedResult("instance %s is not running (status: %s)", id, instance.Status)
	}

	return platform.ExecuteOverSSH(ctx, c.Logger, c.Runner, instance, command, workingDir, executionTimeout, c.AllowSimulation)
}

// WaitForInstanceReady polls until the instance runs and exposes SSH.
// Readiness on Vast.ai means the SSH triple is populated; Running alone is
// not enough to accept commands.
func (c *Client) WaitForInstanceReady(ctx context.Context, id string, timeout time.Duration) bool {
	return platform.PollReady(ctx, c.Logger, c, id, timeout, platform.PollInterval,
		func(_ context.Context, instance *platform.InstanceInfo) bool {
			return instance.HasSSH()
		})
}

// createInstanceInfo maps a raw API record to the canonical snapshot. Vast
// reports the live state in actual_status and always provisions root SSH.
func (c *Client) createInstanceInfo(raw map[string]interface{}) platform.InstanceInfo {
	return platform.InstanceInfo{
		ID:          rawID(raw["id"]),
		Platform:    PlatformName,
		Status:      platform.NormalizeStatus(rawString(raw, "actual_status")),
		GPUType:     rawString(raw, "gpu_name"),
		Image:       rawString(raw, "image"),
		SSHHost:     rawString(raw, "ssh_host"),
		SSHPort:     rawInt(raw, "ssh_port"),
		SSHUsername: defaultSSHUser,
		RawData:     raw,
	}
}

func rawString(raw map[string]interface{}, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func rawInt(raw map[string]interface{}, key string) int {
	switch v := raw[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

// rawID renders a provider identifier that may arrive as number or string.
func rawID(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	default:
		return "unknown"
	}
}
