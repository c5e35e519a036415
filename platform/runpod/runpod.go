// Package runpod implements the platform client for RunPod.
package runpod

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

const (
	// PlatformName is the registry key for this client.
	PlatformName = "runpod"

	defaultBaseURL = "https://api.runpod.io/graphql"

	// Cost-optimized pod defaults: community cloud, modest GPU, small disk.
	defaultGPUType   = "NVIDIA RTX 4000 Ada Generation"
	defaultImage     = "runpod/pytorch:2.1.0-py3.10-cuda11.8.0-devel-ubuntu22.04"
	defaultCloudType = "COMMUNITY"
	defaultDiskGB    = 15
	defaultSSHUser   = "root"
	sshPrivatePort   = 22
	executionTimeout = 5 * time.Minute
	apiTimeout       = 30 * time.Second
)

// Options configures a RunPod client.
type Options struct {
	APIKey string
	Logger *zap.Logger
	Runner util.Runner

	// AllowSimulation enables the fabricated-output execution fallback.
	AllowSimulation bool

	// BaseURL overrides the GraphQL endpoint, used by tests.
	BaseURL string
	// HTTPClient overrides the transport, used by tests.
	HTTPClient *http.Client
}

// Client talks to the RunPod GraphQL API.
type Client struct {
	Options
}

var _ platform.Client = &Client{}

// NewClient returns a RunPod platform client.
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

// pod mirrors the GraphQL pod object fields this client selects.
type pod struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	DesiredStatus string  `json:"desiredStatus"`
	ImageName     string  `json:"imageName"`
	GPUCount      int     `json:"gpuCount"`
	VCPUCount     float64 `json:"vcpuCount"`
	MemoryInGB    float64 `json:"memoryInGb"`
	Machine       struct {
		GPUDisplayName string `json:"gpuDisplayName"`
	} `json:"machine"`
	Runtime *struct {
		Ports []struct {
			IP          string `json:"ip"`
			IsIPPublic  bool   `json:"isIpPublic"`
			PrivatePort int    `json:"privatePort"`
			PublicPort  int    `json:"publicPort"`
		} `json:"ports"`
	} `json:"runtime"`
}

const podFields = `id name desiredStatus imageName gpuCount vcpuCount memoryInGb machine { gpuDisplayName } runtime { ports { ip isIpPublic privatePort publicPort } }`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"?api_key="+c.APIKey, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphQLError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return err
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(envelope.Data, out)
}

// ListInstances returns every pod on the account.
func (c *Client) ListInstances(ctx context.Context) ([]platform.InstanceInfo, error) {
	var data struct {
		Myself struct {
			Pods []pod `json:"pods"`
		} `json:"myself"`
	}
	query := fmt.Sprintf(`query Pods { myself { pods { %s } } }`, podFields)
	if err := c.query(ctx, query, nil, &data); err != nil {
		c.Logger.Error("Cannot list pods",
			zap.Error(err),
		)
		return nil, platform.NewProviderError(PlatformName, "list instances", err)
	}

	instances := make([]platform.InstanceInfo, 0, len(data.Myself.Pods))
	for i := range data.Myself.Pods {
		instances = append(instances, c.createInstanceInfo(&data.Myself.Pods[i]))
	}
	return instances, nil
}

// GetInstance queries a single pod. Not found and transport failures both
// come back absent; get runs inside polling loops and must not abort them.
func (c *Client) GetInstance(ctx context.Context, id string) (*platform.InstanceInfo, error) {
	var data struct {
		Pod *pod `json:"pod"`
	}
	query := fmt.Sprintf(`query Pod($input: PodFilter) { pod(input: $input) { %s } }`, podFields)
	err := c.query(ctx, query, map[string]interface{}{
		"input": map[string]interface{}{"podId": id},
	}, &data)
	if err != nil {
		c.Logger.Warn("Cannot query pod, treating as absent",
			zap.String("InstanceID", id),
			zap.Error(err),
		)
		return nil, nil
	}
	if data.Pod == nil {
		return nil, nil
	}
	info := c.createInstanceInfo(data.Pod)
	return &info, nil
}

// CreateInstance deploys an on-demand pod with cost-optimized defaults.
func (c *Client) CreateInstance(ctx context.Context, req platform.CreateInstanceRequest) (*platform.InstanceInfo, error) {
	podName := "vp-pod-" + uuid.New().String()[:8]
	image := req.Image
	if image == "" {
		image = defaultImage
	}
	gpuType := req.GPUType
	if gpuType == "" {
		gpuType = defaultGPUType
	}

	c.Logger.Info("Creating GPU pod",
		zap.String("Name", podName),
		zap.String("GPUType", gpuType),
		zap.String("Image", image),
	)

	input := map[string]interface{}{
		"name":              podName,
		"imageName":         image,
		"gpuTypeId":         gpuType,
		"cloudType":         defaultCloudType,
		"gpuCount":          1,
		"supportPublicIp":   true,
		"startSsh":          true,
		"containerDiskInGb": defaultDiskGB,
		"volumeInGb":        0,
		"ports":             "22/tcp",
		"env": []map[string]string{
			{"key": "WORKSPACE", "value": "/workspace"},
		},
	}
	for key, value := range req.AdditionalParams {
		// Disk sizes are cost-sensitive and only shrink below the defaults;
		// the zero-volume default never grows because a persistent volume
		// bills separately.
		switch key {
		case "containerDiskInGb":
			if asked, err := strconv.Atoi(value); err == nil && asked < defaultDiskGB {
				input[key] = asked
				continue
			}
		case "volumeInGb":
		default:
			input[key] = value
			continue
		}
		c.Logger.Warn("Ignoring cost-raising override",
			zap.String("Param", key),
			zap.String("Value", value),
		)
	}

	var data struct {
		Deploy *pod `json:"podFindAndDeployOnDemand"`
	}
	mutation := fmt.Sprintf(`mutation Deploy($input: PodFindAndDeployOnDemandInput) { podFindAndDeployOnDemand(input: $input) { %s } }`, podFields)
	err := c.query(ctx, mutation, map[string]interface{}{"input": input}, &data)
	if err != nil {
		return nil, platform.NewProviderError(PlatformName, "create instance", err)
	}
	if data.Deploy == nil || data.Deploy.ID == "" {
		return nil, platform.NewProviderError(PlatformName, "create instance",
			fmt.Errorf("deploy response missing pod id"))
	}

	c.Logger.Info("Pod created",
		zap.String("InstanceID", data.Deploy.ID),
	)

	return &platform.InstanceInfo{
		ID:       data.Deploy.ID,
		Platform: PlatformName,
		Status:   platform.StatusPending,
		Image:    data.Deploy.ImageName,
		RawData:  map[string]interface{}{"pod": data.Deploy},
	}, nil
}

// DestroyInstance terminates a pod. Termination failures degrade to a false
// return plus an operator warning; they never propagate.
func (c *Client) DestroyInstance(ctx context.Context, id string) bool {
	mutation := `mutation Terminate($input: PodTerminateInput!) { podTerminate(input: $input) }`
	err := c.query(ctx, mutation, map[string]interface{}{
		"input": map[string]interface{}{"podId": id},
	}, nil)
	if err != nil {
		c.Logger.Warn("Could not terminate pod; terminate it manually in the RunPod console to avoid charges",
			zap.String("InstanceID", id),
			zap.Error(err),
		)
		return false
	}

	c.Logger.Info("Pod termination initiated",
		zap.String("InstanceID", id),
	)
	return true
}

// ExecuteCommand runs a command on the pod over SSH, failing fast when the
// pod is absent or not running.
func (c *Client) ExecuteCommand(ctx context.Context, id string, command []string, workingDir string) platform.ExecutionResult {
	instance, err := c.GetInstance(ctx, id)
	if err != nil || instance == nil {
		return platform.FailedResult("instance %s not found", id)
	}
	if instance.Status != platform.StatusRunning {
		return platform.FailedResult("pod %s is not running (status: %s)", id, instance.Status)
	}

	return platform.ExecuteOverSSH(ctx, c.Logger, c.Runner, instance, command, workingDir, executionTimeout, c.AllowSimulation)
}

// WaitForInstanceReady polls until a fresh query reports the pod running.
func (c *Client) WaitForInstanceReady(ctx context.Context, id string, timeout time.Duration) bool {
	return platform.PollReady(ctx, c.Logger, c, id, timeout, platform.PollInterval,
		func(ctx context.Context, _ *platform.InstanceInfo) bool {
			fresh, err := c.GetInstance(ctx, id)
			return err == nil && fresh != nil && fresh.Status == platform.StatusRunning
		})
}

// createInstanceInfo maps a pod to the canonical snapshot. SSH connection
// info lives in the runtime port list as the private-port-22 mapping; the
// resource descriptor is GPU count when present, vCPU/RAM otherwise.
func (c *Client) createInstanceInfo(p *pod) platform.InstanceInfo {
	var sshHost string
	var sshPort int
	if p.Runtime != nil {
		for _, port := range p.Runtime.Ports {
			if port.PrivatePort == sshPrivatePort {
				sshHost = port.IP
				sshPort = port.PublicPort
				break
			}
		}
	}

	var resource string
	if p.GPUCount > 0 {
		resource = fmt.Sprintf("%d GPU(s)", p.GPUCount)
		if p.Machine.GPUDisplayName != "" {
			resource = fmt.Sprintf("%d x %s", p.GPUCount, p.Machine.GPUDisplayName)
		}
	} else {
		resource = fmt.Sprintf("%.0f vCPU, %.0fGB RAM", p.VCPUCount, p.MemoryInGB)
	}

	raw := make(map[string]interface{})
	if encoded, err := json.Marshal(p); err == nil {
		_ = json.Unmarshal(encoded, &raw)
	}

	return platform.InstanceInfo{
		ID:          p.ID,
		Platform:    PlatformName,
		Status:      platform.NormalizeStatus(p.DesiredStatus),
		GPUType:     resource,
		Image:       p.ImageName,
		SSHHost:     sshHost,
		SSHPort:     sshPort,
		SSHUsername: defaultSSHUser,
		RawData:     raw,
	}
}
