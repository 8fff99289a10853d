// Package request builds the invocation descriptors the provisioning engine
// submits to the database initializer, one per lifecycle phase.
package request

import (
	"bytes"
	"crypto/md5" //nolint:gosec // fingerprint only, not a security boundary
	"encoding/hex"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"db-initializer/internal/models"
)

const (
	physicalIDInfix   = "-AwsSdkCall-"
	fingerprintLength = 6

	sdkCallService = "Lambda"
	sdkCallAction  = "invoke"
)

// Lifecycle holds the three descriptors for one managed resource.
type Lifecycle struct {
	OnCreate models.RequestDescriptor `json:"onCreate"`
	OnUpdate models.RequestDescriptor `json:"onUpdate"`
	OnDelete models.RequestDescriptor `json:"onDelete"`
}

// ForAction returns the descriptor for the given phase.
func (l Lifecycle) ForAction(action models.Action) (models.RequestDescriptor, error) {
	switch action {
	case models.ActionCreate:
		return l.OnCreate, nil
	case models.ActionUpdate:
		return l.OnUpdate, nil
	case models.ActionDelete:
		return l.OnDelete, nil
	default:
		return models.RequestDescriptor{}, fmt.Errorf("%w: %q", models.ErrUnknownAction, action)
	}
}

// Build is a pure function of its inputs: the same params, target, version and
// stack id always give a byte-identical descriptor.
func Build(params models.RequestParams, targetIdentifier, targetVersion, stackID string) models.RequestDescriptor {
	payload := SerializePayload(params)

	return models.RequestDescriptor{
		TargetIdentifier:   targetIdentifier,
		SerializedPayload:  payload,
		PhysicalResourceID: PhysicalResourceID(stackID, targetVersion, payload),
	}
}

// BuildLifecycle builds the onCreate, onUpdate and onDelete descriptors for a
// single database. They share the target and differ in params.action.
func BuildLifecycle(secretName, databaseName, targetIdentifier, targetVersion, stackID string) Lifecycle {
	build := func(action models.Action) models.RequestDescriptor {
		return Build(models.RequestParams{
			SecretName:   secretName,
			DatabaseName: databaseName,
			Action:       action,
		}, targetIdentifier, targetVersion, stackID)
	}

	return Lifecycle{
		OnCreate: build(models.ActionCreate),
		OnUpdate: build(models.ActionUpdate),
		OnDelete: build(models.ActionDelete),
	}
}

// SerializePayload renders {"params":{...}} without HTML escaping so that the
// text matches what a JSON.stringify based engine would hash.
func SerializePayload(params models.RequestParams) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(models.Payload{Params: params}); err != nil {
		// RequestParams only holds strings.
		panic(fmt.Sprintf("request: serializing params: %v", err))
	}
	return string(unescapeLineSeparators(bytes.TrimRight(buf.Bytes(), "\n")))
}

// unescapeLineSeparators writes U+2028 and U+2029 as raw runes, which
// encoding/json always escapes and JSON.stringify never does. Every backslash
// in encoder output starts an escape, so escapes are walked in pairs.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		switch esc := b[i:min(i+6, len(b))]; {
		case bytes.Equal(esc, []byte(`\u2028`)):
			out = utf8.AppendRune(out, '\u2028')
			i += 5
			continue
		case bytes.Equal(esc, []byte(`\u2029`)):
			out = utf8.AppendRune(out, '\u2029')
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// Fingerprint is the first six hex characters of the payload's MD5 digest.
func Fingerprint(payload string) string {
	sum := md5.Sum([]byte(payload)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:fingerprintLength]
}

// PhysicalResourceID formats "{stackID}-AwsSdkCall-{targetVersion}{fingerprint}".
func PhysicalResourceID(stackID, targetVersion, payload string) string {
	return stackID + physicalIDInfix + targetVersion + Fingerprint(payload)
}

// SDKCall is the shape a custom-resource provider expects for a Lambda invoke.
type SDKCall struct {
	Service            string           `json:"service" yaml:"service"`
	Action             string           `json:"action" yaml:"action"`
	Parameters         InvokeParameters `json:"parameters" yaml:"parameters"`
	PhysicalResourceID PhysicalID       `json:"physicalResourceId" yaml:"physicalResourceId"`
}

type InvokeParameters struct {
	FunctionName string `json:"FunctionName" yaml:"FunctionName"`
	Payload      string `json:"Payload" yaml:"Payload"`
}

type PhysicalID struct {
	ID string `json:"id" yaml:"id"`
}

func NewSDKCall(d models.RequestDescriptor) SDKCall {
	return SDKCall{
		Service: sdkCallService,
		Action:  sdkCallAction,
		Parameters: InvokeParameters{
			FunctionName: d.TargetIdentifier,
			Payload:      d.SerializedPayload,
		},
		PhysicalResourceID: PhysicalID{ID: d.PhysicalResourceID},
	}
}
