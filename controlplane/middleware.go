package controlplane

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"localdeals/controlplane/application"
	"localdeals/controlplane/domain"
	"localdeals/controlplane/infra"

	"github.com/rs/zerolog/log"
)

type KeyFunc func(r *http.Request) string

type ThrottleOptions struct {
	Store        domain.LimiterStore
	KeyFn        KeyFunc
	UserHeader   string
	RejectStatus int
	RetryAfter   time.Duration

	// AddRateLimitHeaders expõe a chave e a taxa aplicada em X-RateLimit-*.
	AddRateLimitHeaders bool
}

type rateInfo interface {
	RPS() float64
	Burst() int
}

// DefaultKeyFunc usa o comprador resolvido; sem ele, o IP remoto.
func DefaultKeyFunc(userHeader string) KeyFunc {
	return func(r *http.Request) string {
		if id, ok := userID(r, userHeader); ok {
			return "user:" + strconv.FormatInt(id, 10)
		}

		host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
		if err == nil && host != "" {
			return "ip:" + host
		}
		if r.RemoteAddr != "" {
			return "ip:" + r.RemoteAddr
		}
		return "unknown"
	}
}

func ThrottleMiddleware(opts ThrottleOptions) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.RetryAfter == 0 {
		opts.RetryAfter = 1 * time.Second
	}
	if opts.UserHeader == "" {
		opts.UserHeader = DefaultUserHeader
	}
	if opts.KeyFn == nil {
		opts.KeyFn = DefaultKeyFunc(opts.UserHeader)
	}

	svc := application.ThrottleService{
		Store:      opts.Store,
		RetryAfter: opts.RetryAfter,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := opts.KeyFn(r)

			if opts.AddRateLimitHeaders {
				w.Header().Set("X-RateLimit-Key", key)
				if ri, ok := opts.Store.(rateInfo); ok {
					w.Header().Set("X-RateLimit-RPS", formatFloat(ri.RPS()))
					w.Header().Set("X-RateLimit-Burst", formatInt(ri.Burst()))
				}
			}

			dec := svc.Decide(domain.Key(key))
			if !dec.Allowed {
				w.Header().Set("Retry-After", formatInt(int(dec.RetryAfter.Seconds())))
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration

	// PerVoucher limita as compras em voo de um mesmo voucher; <= 0 desliga.
	PerVoucher int
}

// ConcurrencyMiddleware limita as requisições em voo; Max <= 0 desliga.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, ok := svc.Acquire(r.Context())
			if !ok {
				http.Error(w, http.StatusText(opts.RejectStatus), opts.RejectStatus)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}

// VoucherConcurrencyMiddleware limita as compras em voo por voucher na rota de
// compra. O voucher vem da variável {id} da rota; sem ela a requisição segue
// e o handler rejeita.
func VoucherConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.PerVoucher <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}

	svc := application.ConcurrencyService{
		Vouchers:       infra.NewVoucherSlots(opts.PerVoucher),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			voucherID, err := pathID(r)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			release, ok := svc.AcquireVoucher(r.Context(), voucherID)
			if !ok {
				log.Warn().Int64("voucher_id", voucherID).Msg("voucher purchase slots exhausted")
				writeJSON(w, opts.RejectStatus, Result{Success: false, ErrorMsg: "too many concurrent purchases"})
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
