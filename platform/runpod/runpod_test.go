package runpod

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/variousplug/vp/platform"
	"github.com/variousplug/vp/util"
)

type fakeRunner struct {
	result util.CommandResult
	err    error
}

func (r *fakeRunner) Run(context.Context, time.Duration, string, ...string) (util.CommandResult, error) {
	return r.result, r.err
}

type graphQLCall struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Options{
		APIKey:  "test-key",
		Logger:  zap.NewNop(),
		Runner:  &fakeRunner{},
		BaseURL: server.URL,
	})
	require.NoError(t, err)
	return client
}

func runningPod() map[string]interface{} {
	return map[string]interface{}{
		"id":            "pod-1",
		"name":          "vp-pod-abc",
		"desiredStatus": "RUNNING",
		"imageName":     "runpod/pytorch",
		"gpuCount":      1,
		"machine":       map[string]interface{}{"gpuDisplayName": "RTX 4000 Ada"},
		"runtime": map[string]interface{}{
			"ports": []map[string]interface{}{
				{"ip": "1.2.3.4", "isIpPublic": true, "privatePort": 22, "publicPort": 10022},
				{"ip": "1.2.3.4", "isIpPublic": true, "privatePort": 8888, "publicPort": 10888},
			},
		},
	}
}

func respond(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestListInstances(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		respond(w, map[string]interface{}{
			"myself": map[string]interface{}{
				"pods": []interface{}{
					runningPod(),
					map[string]interface{}{
						"id":            "pod-2",
						"desiredStatus": "EXITED",
						"vcpuCount":     8,
						"memoryInGb":    32,
					},
				},
			},
		})
	}))

	instances, err := client.ListInstances(context.Background())
	require.NoError(t, err)
	require.Len(t, instances, 2)

	assert.Equal(t, "pod-1", instances[0].ID)
	assert.Equal(t, platform.StatusRunning, instances[0].Status)
	assert.Equal(t, "1 x RTX 4000 Ada", instances[0].GPUType)
	assert.Equal(t, "1.2.3.4", instances[0].SSHHost)
	assert.Equal(t, 10022, instances[0].SSHPort, "SSH maps through the private-port-22 entry")
	assert.Equal(t, "root", instances[0].SSHUsername)

	assert.Equal(t, platform.StatusStopped, instances[1].Status)
	assert.Equal(t, "8 vCPU, 32GB RAM", instances[1].GPUType)
	assert.False(t, instances[1].HasSSH())
}

func TestListInstancesGraphQLError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"errors": []map[string]interface{}{{"message": "unauthorized"}},
		})
	}))

	_, err := client.ListInstances(context.Background())
	require.Error(t, err)
	var provider *platform.ProviderError
	require.ErrorAs(t, err, &provider)
	assert.Contains(t, provider.Err.Error(), "unauthorized")
}

func TestGetInstanceLenient(t *testing.T) {
	fail := true
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		respond(w, map[string]interface{}{"pod": nil})
	}))

	instance, err := client.GetInstance(context.Background(), "pod-1")
	assert.NoError(t, err, "transport failure is absence, not an error")
	assert.Nil(t, instance)

	fail = false
	instance, err = client.GetInstance(context.Background(), "pod-1")
	assert.NoError(t, err)
	assert.Nil(t, instance)
}

func TestCreateInstanceDefaults(t *testing.T) {
	var call graphQLCall
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		respond(w, map[string]interface{}{"podFindAndDeployOnDemand": runningPod()})
	}))

	instance, err := client.CreateInstance(context.Background(), platform.CreateInstanceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "pod-1", instance.ID)
	assert.Equal(t, platform.StatusPending, instance.Status)

	input := call.Variables["input"].(map[string]interface{})
	assert.Equal(t, defaultGPUType, input["gpuTypeId"])
	assert.Equal(t, "COMMUNITY", input["cloudType"])
	assert.Equal(t, "22/tcp", input["ports"])
	assert.Equal(t, true, input["startSsh"])
	assert.True(t, strings.HasPrefix(input["name"].(string), "vp-pod-"))
}

func TestCreateInstanceDiskOverridesOnlyLowered(t *testing.T) {
	var call graphQLCall
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		respond(w, map[string]interface{}{"podFindAndDeployOnDemand": runningPod()})
	}))

	_, err := client.CreateInstance(context.Background(), platform.CreateInstanceRequest{
		AdditionalParams: map[string]string{
			"containerDiskInGb": "500",
			"volumeInGb":        "100",
			"minVcpuCount":      "2",
		},
	})
	require.NoError(t, err)

	input := call.Variables["input"].(map[string]interface{})
	assert.Equal(t, float64(defaultDiskGB), input["containerDiskInGb"], "container disk can only shrink")
	assert.Equal(t, float64(0), input["volumeInGb"], "the zero-volume default never grows")
	assert.Equal(t, "2", input["minVcpuCount"], "non-cost params still pass through")

	_, err = client.CreateInstance(context.Background(), platform.CreateInstanceRequest{
		AdditionalParams: map[string]string{"containerDiskInGb": "8"},
	})
	require.NoError(t, err)
	input = call.Variables["input"].(map[string]interface{})
	assert.Equal(t, float64(8), input["containerDiskInGb"])
}

func TestCreateInstanceMissingPodID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"podFindAndDeployOnDemand": nil})
	}))

	_, err := client.CreateInstance(context.Background(), platform.CreateInstanceRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing pod id")
}

func TestDestroyInstance(t *testing.T) {
	var call graphQLCall
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&call))
		respond(w, map[string]interface{}{"podTerminate": nil})
	}))

	assert.True(t, client.DestroyInstance(context.Background(), "pod-1"))
	assert.Contains(t, call.Query, "podTerminate")
	input := call.Variables["input"].(map[string]interface{})
	assert.Equal(t, "pod-1", input["podId"])
}

func TestDestroyInstanceFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	assert.NotPanics(t, func() {
		assert.False(t, client.DestroyInstance(context.Background(), "pod-1"))
	})
}

func TestExecuteCommandRequiresRunning(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"pod": map[string]interface{}{
			"id":            "pod-1",
			"desiredStatus": "EXITED",
		}})
	}))

	result := client.ExecuteCommand(context.Background(), "pod-1", []string{"true"}, "/workspace")
	assert.False(t, result.Ok())
	assert.Contains(t, result.Error, "not running")
}

func TestExecuteCommandOverSSH(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]interface{}{"pod": runningPod()})
	}))
	defer server.Close()

	client, err := NewClient(Options{
		APIKey:  "test-key",
		Logger:  zap.NewNop(),
		Runner:  &fakeRunner{result: util.CommandResult{Stdout: "ok\n"}},
		BaseURL: server.URL,
	})
	require.NoError(t, err)

	result := client.ExecuteCommand(context.Background(), "pod-1", []string{"nvidia-smi"}, "/workspace")
	assert.True(t, result.Ok())
	assert.Equal(t, "ok\n", result.Output)
}
