package health

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rustamdavlatov/checkout/internal/domain"
)

// Status — итоговое состояние компонента.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
	StatusDegraded  Status = "degraded"
)

// Check — результат одной проверки.
type Check struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Message    string `json:"message,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Response — тело ответа /healthz.
type Response struct {
	Status        Status           `json:"status"`
	Timestamp     time.Time        `json:"timestamp"`
	Checks        map[string]Check `json:"checks,omitempty"`
	Version       string           `json:"version,omitempty"`
	UptimeSeconds int64            `json:"uptime_seconds"`
}

// Checker — проверка здоровья одного компонента.
type Checker interface {
	Check() Check
}

// CheckFunc оборачивает функцию в Checker: nil — healthy, ошибка — unhealthy.
type CheckFunc struct {
	name string
	fn   func() error
}

// NewCheckFunc создаёт проверку из функции.
func NewCheckFunc(name string, fn func() error) *CheckFunc {
	return &CheckFunc{name: name, fn: fn}
}

func (c *CheckFunc) Check() Check {
	start := time.Now()
	err := c.fn()
	check := Check{
		Name:       c.name,
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// BreakerChecker отражает состояние circuit breaker'а внешнего сервиса.
// Открытый breaker — degraded: композиция черновиков работает, но
// отправка транзакций временно отклоняется.
type BreakerChecker struct {
	name  string
	state func() string
}

// NewBreakerChecker создаёт проверку по функции состояния breaker'а.
func NewBreakerChecker(name string, state func() string) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Check() Check {
	check := Check{Name: c.name, Status: StatusHealthy}
	if state := c.state(); state != "closed" {
		check.Status = StatusDegraded
		check.Message = "circuit breaker " + state
	}
	return check
}

// OutboxBacklogChecker следит за отставанием transactional outbox. Большой
// backlog — degraded, а не unhealthy: сервис продолжает принимать запросы,
// но события доходят до брокера с задержкой.
type OutboxBacklogChecker struct {
	repo       domain.OutboxRepository
	maxPending int
}

// NewOutboxBacklogChecker создаёт проверку backlog с порогом maxPending.
func NewOutboxBacklogChecker(repo domain.OutboxRepository, maxPending int) *OutboxBacklogChecker {
	if maxPending <= 0 {
		maxPending = 1000
	}
	return &OutboxBacklogChecker{repo: repo, maxPending: maxPending}
}

func (c *OutboxBacklogChecker) Check() Check {
	start := time.Now()
	stats, err := c.repo.Stats()
	check := Check{
		Name:       "outbox",
		Status:     StatusHealthy,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
		return check
	}
	if stats.PendingCount > c.maxPending {
		check.Status = StatusDegraded
		check.Message = fmt.Sprintf("outbox backlog %d exceeds %d", stats.PendingCount, c.maxPending)
	}
	return check
}

// Handler агрегирует проверки компонентов и отдаёт /healthz.
type Handler struct {
	mu        sync.RWMutex
	checkers  map[string]Checker
	version   string
	startTime time.Time
}

// NewHandler создаёт health handler с меткой версии сервиса.
func NewHandler(version string) *Handler {
	return &Handler{
		checkers:  make(map[string]Checker),
		version:   version,
		startTime: time.Now(),
	}
}

// Register добавляет проверку компонента под именем name.
func (h *Handler) Register(name string, checker Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers[name] = checker
}

func (h *Handler) snapshot() map[string]Checker {
	h.mu.RLock()
	defer h.mu.RUnlock()
	checkers := make(map[string]Checker, len(h.checkers))
	for name, checker := range h.checkers {
		checkers[name] = checker
	}
	return checkers
}

// ServeHTTP выполняет все проверки и возвращает агрегированный статус.
// Любой unhealthy компонент — 503, degraded не роняет readiness.
func (h *Handler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	checks := make(map[string]Check)
	overall := StatusHealthy

	for name, checker := range h.snapshot() {
		check := checker.Check()
		checks[name] = check

		switch check.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	response := Response{
		Status:        overall,
		Timestamp:     time.Now().UTC(),
		Checks:        checks,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	}

	statusCode := http.StatusOK
	if overall == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// LivenessHandler — liveness probe, всегда 200.
func LivenessHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
