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

package session

import "time"

// Store is the storage contract the Session Manager is abstracted
// behind (§4.J). MemoryStore and PostgresStore both satisfy it.
type Store interface {
	Create(s Session) error
	Get(id string) (Session, bool, error)
	Update(s Session) error
	Delete(id string) error
	Find(filter Filter) ([]Session, error)
	CleanupExpired(now time.Time) (int, error)
	Stats(now time.Time) (Stats, error)
}
