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

package dispatch

import (
	"fmt"
)

// validateArgs checks args against a tool's input_schema: a minimal,
// JSON-Schema-shaped object of the form
//
//	{"type": "object", "required": [...], "properties": {"field": {"type": "string"}}}
//
// No third-party JSON-schema library appears anywhere in the example
// corpus (see DESIGN.md); this is a deliberately small subset (required
// presence + primitive type-checking) rather than a hand-rolled
// reimplementation of the full spec.
func validateArgs(schema map[string]interface{}, args map[string]interface{}) error {
	if schema == nil {
		return nil
	}

	if required, ok := schema["required"].([]string); ok {
		for _, field := range required {
			if _, present := args[field]; !present {
				return fmt.Errorf("missing required field %q", field)
			}
		}
	}

	properties, _ := schema["properties"].(map[string]interface{})
	for field, raw := range args {
		propSchema, ok := properties[field].(map[string]interface{})
		if !ok {
			continue
		}
		wantType, _ := propSchema["type"].(string)
		if wantType == "" {
			continue
		}
		if !matchesType(raw, wantType) {
			return fmt.Errorf("field %q: want type %s", field, wantType)
		}
	}
	return nil
}

func matchesType(value interface{}, wantType string) bool {
	switch wantType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]interface{})
		return ok
	case "array":
		_, ok := value.([]interface{})
		return ok
	default:
		return true
	}
}
