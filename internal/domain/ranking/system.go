// Package ranking implements the unified cross-platform rating engine.
//
// A System owns every registered platform and user. Each platform update
// recomputes the per-platform weights (linear raw weight, softmax across
// platforms, exponential time decay) and then every user's blended rating,
// imputing ratings a user has not reported. All mutations are serialized by
// a single lock; readers receive copies.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// Default engine coefficients.
const (
	DefaultAlpha       = 0.5
	DefaultBeta        = 0.3
	DefaultGamma       = 0.2
	DefaultDecayLambda = 0.01
	DefaultHistory     = 256

	softmaxFloor = 1e-8
	day          = 24 * time.Hour
)

// Weights is a copy of the three weight maps computed on the last recompute.
// Map iteration order carries no meaning.
type Weights struct {
	Raw     map[string]float64 `json:"raw"`
	Softmax map[string]float64 `json:"softmax"`
	Final   map[string]float64 `json:"final"`
}

// System is the aggregate root of the rating engine.
type System struct {
	mu sync.RWMutex

	alpha        float64
	beta         float64
	gamma        float64
	decayLambda  float64
	historyLimit int
	now          func() time.Time

	platforms     map[string]*platform
	platformOrder []string
	users         map[string]*account
	userOrder     []string

	rawWeights     map[string]float64
	softmaxWeights map[string]float64
	finalWeights   map[string]float64
}

// New creates an empty System.
func New(opts ...Option) *System {
	s := &System{
		alpha:          DefaultAlpha,
		beta:           DefaultBeta,
		gamma:          DefaultGamma,
		decayLambda:    DefaultDecayLambda,
		historyLimit:   DefaultHistory,
		now:            time.Now,
		platforms:      make(map[string]*platform),
		users:          make(map[string]*account),
		rawWeights:     make(map[string]float64),
		softmaxWeights: make(map[string]float64),
		finalWeights:   make(map[string]float64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddPlatform registers a platform with its rating scale ceiling.
func (s *System) AddPlatform(name string, maxRating float64) error {
	if name == "" {
		return fmt.Errorf("add platform: empty name: %w", ErrInvalidInput)
	}
	if !finite(maxRating) || maxRating <= 0 {
		return fmt.Errorf("add platform %q: max rating %v: %w", name, maxRating, ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.platforms[name]; ok {
		return fmt.Errorf("add platform %q: %w", name, ErrDuplicate)
	}
	s.platforms[name] = newPlatform(name, maxRating)
	s.platformOrder = append(s.platformOrder, name)
	return nil
}

// AddUser registers a user. It reports whether the user was new; registering
// a known user is a no-op.
func (s *System) AddUser(userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("add user: empty id: %w", ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ensureUser(userID), nil
}

// UpdatePlatformStats applies a rating snapshot for a platform and recomputes
// all weights and every user's unified rating. Nothing is mutated when an
// error is returned.
func (s *System) UpdatePlatformStats(name string, difficulty, participation float64, ratings map[string]float64) error {
	if !finite(difficulty) || !finite(participation) {
		return fmt.Errorf("update %q: non-finite platform signal: %w", name, ErrInvalidInput)
	}
	for userID, r := range ratings {
		if userID == "" {
			return fmt.Errorf("update %q: empty user id: %w", name, ErrInvalidInput)
		}
		if !finite(r) {
			return fmt.Errorf("update %q: rating for %q is %v: %w", name, userID, r, ErrInvalidInput)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.platforms[name]
	if !ok {
		return fmt.Errorf("update platform %q: %w", name, ErrNotFound)
	}

	now := s.now()
	p.updateStats(now, difficulty, participation, ratings, s.historyLimit)

	for userID, r := range ratings {
		s.ensureUser(userID)
		s.users[userID].platformRatings[name] = r
	}

	s.recomputeWeights(now)
	s.recomputeRatings()
	return nil
}

// Refresh recomputes weights and ratings against the current clock without
// a new snapshot, so time decay takes effect between updates.
func (s *System) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recomputeWeights(s.now())
	s.recomputeRatings()
}

// SetCourseBonus records an externally computed course bonus for a user. The
// bonus is reported alongside the unified rating and is not added to it.
func (s *System) SetCourseBonus(userID string, bonus float64) error {
	if !finite(bonus) {
		return fmt.Errorf("set bonus for %q: %v: %w", userID, bonus, ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("set bonus for %q: %w", userID, ErrNotFound)
	}
	u.courseBonus = bonus
	return nil
}

// Rankings returns every user ordered by total rating, highest first. Ties
// keep registration order.
func (s *System) Rankings() []Ranking {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.sortedRankings()
}

// TopN returns the n best entries. n larger than the user count returns all
// users; n <= 0 returns an empty slice.
func (s *System) TopN(n int) []Ranking {
	if n <= 0 {
		return []Ranking{}
	}
	all := s.Rankings()
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// Rank returns the leaderboard row for a single user.
func (s *System) Rank(userID string) (Ranking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.users[userID]; !ok {
		return Ranking{}, fmt.Errorf("rank %q: %w", userID, ErrNotFound)
	}
	for _, r := range s.sortedRankings() {
		if r.UserID == userID {
			return r, nil
		}
	}
	return Ranking{}, fmt.Errorf("rank %q: %w", userID, ErrNotFound)
}

// Weights returns copies of the raw, softmax and final weight maps.
func (s *System) Weights() Weights {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Weights{
		Raw:     copyWeights(s.rawWeights),
		Softmax: copyWeights(s.softmaxWeights),
		Final:   copyWeights(s.finalWeights),
	}
}

// Platform returns a copy of one platform's state.
func (s *System) Platform(name string) (PlatformStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.platforms[name]
	if !ok {
		return PlatformStats{}, fmt.Errorf("platform %q: %w", name, ErrNotFound)
	}
	return p.snapshot(), nil
}

// Platforms returns copies of every platform, ordered by name.
func (s *System) Platforms() []PlatformStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]PlatformStats, 0, len(s.platforms))
	for _, name := range s.platformOrder {
		out = append(out, s.platforms[name].snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// User returns a copy of one user's account.
func (s *System) User(userID string) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return Account{}, fmt.Errorf("user %q: %w", userID, ErrNotFound)
	}
	return u.snapshot(), nil
}

// RatingHistory returns the retained observations of a user on a platform,
// oldest first. A user that never reported on the platform yields an empty
// slice.
func (s *System) RatingHistory(platformName, userID string) ([]Observation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.platforms[platformName]
	if !ok {
		return nil, fmt.Errorf("rating history %q: %w", platformName, ErrNotFound)
	}
	return append([]Observation{}, p.ratings[userID]...), nil
}

// ImputeRating returns the rating the engine would use for a user on a
// platform the user has not reported on. A user with a rating on the
// platform gets that rating back.
func (s *System) ImputeRating(userID, platformName string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return 0, fmt.Errorf("impute for %q: %w", userID, ErrNotFound)
	}
	p, ok := s.platforms[platformName]
	if !ok {
		return 0, fmt.Errorf("impute on %q: %w", platformName, ErrNotFound)
	}
	if r, ok := u.platformRatings[platformName]; ok {
		return r, nil
	}
	return s.impute(u, p), nil
}

// Counts returns the number of registered platforms and users.
func (s *System) Counts() (platforms, users int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.platforms), len(s.users)
}

// ensureUser creates the account if missing. Caller holds the write lock.
func (s *System) ensureUser(userID string) bool {
	if _, ok := s.users[userID]; ok {
		return false
	}
	s.users[userID] = newAccount(userID)
	s.userOrder = append(s.userOrder, userID)
	return true
}

// recomputeWeights rebuilds the three weight maps from scratch.
func (s *System) recomputeWeights(now time.Time) {
	raw := make(map[string]float64, len(s.platforms))
	for _, name := range s.platformOrder {
		p := s.platforms[name]
		if !p.updated {
			continue
		}
		raw[name] = s.alpha*p.difficulty + s.beta*p.participation + s.gamma*p.drift
	}

	// Shifting by the largest raw weight keeps exp finite and leaves the
	// normalized result unchanged.
	shift := math.Inf(-1)
	for _, w := range raw {
		shift = math.Max(shift, w)
	}
	exps := make(map[string]float64, len(raw))
	var sum float64
	for _, name := range s.platformOrder {
		w, ok := raw[name]
		if !ok {
			continue
		}
		e := math.Exp(w - shift)
		exps[name] = e
		sum += e
	}
	sum = math.Max(sum, softmaxFloor)

	softmax := make(map[string]float64, len(exps))
	for name, e := range exps {
		softmax[name] = e / sum
	}

	final := make(map[string]float64, len(softmax))
	for _, name := range s.platformOrder {
		p := s.platforms[name]
		if !p.updated {
			continue
		}
		final[name] = softmax[name] * math.Exp(-s.decayLambda*ageInDays(now, p.lastUpdate))
	}

	s.rawWeights = raw
	s.softmaxWeights = softmax
	s.finalWeights = final
}

// recomputeRatings rebuilds every user's unified rating from finalWeights.
func (s *System) recomputeRatings() {
	for _, userID := range s.userOrder {
		u := s.users[userID]
		var weighted, total float64
		for _, name := range s.platformOrder {
			w, ok := s.finalWeights[name]
			if !ok {
				continue
			}
			r, ok := u.platformRatings[name]
			if !ok {
				r = s.impute(u, s.platforms[name])
			}
			weighted += w * r
			total += w
		}
		if total > 0 {
			u.unifiedRating = weighted / total
		} else {
			u.unifiedRating = 0
		}
		u.totalRating = u.unifiedRating
	}
}

// impute fills a missing rating: the user's mean on other platforms, then the
// platform's recent average, then half the platform's scale.
func (s *System) impute(u *account, p *platform) float64 {
	var sum float64
	var n int
	for _, name := range s.platformOrder {
		if name == p.name {
			continue
		}
		if r, ok := u.platformRatings[name]; ok {
			sum += r
			n++
		}
	}
	if n > 0 {
		return sum / float64(n)
	}
	if len(p.history) > 0 {
		return p.trailingAvg(imputeWindow)
	}
	return p.maxRating * neutralFactor
}

func (s *System) sortedRankings() []Ranking {
	out := make([]Ranking, 0, len(s.userOrder))
	for _, userID := range s.userOrder {
		u := s.users[userID]
		out = append(out, Ranking{
			UserID:        u.userID,
			UnifiedRating: u.unifiedRating,
			CourseBonus:   u.courseBonus,
			TotalRating:   u.totalRating,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalRating > out[j].TotalRating
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// ageInDays returns whole elapsed days; clock skew counts as zero.
func ageInDays(now, then time.Time) float64 {
	d := now.Sub(then)
	if d <= 0 {
		return 0
	}
	return float64(d / day)
}

func copyWeights(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
