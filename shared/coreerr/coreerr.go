// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package coreerr defines the error taxonomy shared by every component of
// the control plane, generalizing connectors/base's ConnectorError into a
// plane-wide typed error so that the Tool Dispatcher can mechanically turn
// any failure into the JSON-RPC {isError, content} shape.
package coreerr

import "fmt"

// Kind enumerates the error taxonomy components report against.
type Kind string

const (
	InvalidRequest      Kind = "invalid_request"
	InvalidParams       Kind = "invalid_params"
	ConnectionFailed    Kind = "connection_failed"
	TimeoutError        Kind = "timeout_error"
	PoolError           Kind = "pool_error"
	SecurityViolation   Kind = "security_violation"
	UnsupportedOperation Kind = "unsupported_operation"
	ThreatDetected       Kind = "threat_detected"
	NotFound             Kind = "not_found"
	RateLimitExceeded    Kind = "rate_limit_exceeded"
	Internal             Kind = "internal"
)

// Retryable reports whether the retry policy (§7) permits a single retry
// for this error kind. Only pool-layer ConnectionFailed retries automatically.
func (k Kind) Retryable() bool {
	return k == ConnectionFailed
}

// Error is the typed error every component returns. Component is the
// originating package/operation label (e.g. "pool.Acquire",
// "security.Validate"); Cause, when present, is wrapped for errors.Is/As.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %s (cause: %v)", e.Component, e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Component, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New constructs a taxonomy error with no wrapped cause.
func New(kind Kind, component, message string) *Error {
	return &Error{Kind: kind, Component: component, Message: message}
}

// Wrap constructs a taxonomy error wrapping an underlying cause.
func Wrap(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, defaulting to Internal otherwise.
func KindOf(err error) Kind {
	var e *Error
	if As(err, &e) {
		return e.Kind
	}
	return Internal
}

// As is a thin indirection over errors.As kept local to avoid importing
// the standard "errors" package at every call site that only needs KindOf.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
