package controlplane

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"localdeals/controlplane/application"
	"localdeals/controlplane/domain"

	"github.com/gorilla/mux"
)

// Services agrupa os casos de uso expostos por HTTP.
type Services struct {
	Catalog  application.CatalogService
	Vouchers application.VoucherService
	Seckill  application.SeckillService
}

type RouterOptions struct {
	UserHeader  string
	Throttle    ThrottleOptions
	Concurrency ConcurrencyOptions
}

func NewRouter(svc Services, opts RouterOptions) http.Handler {
	if opts.UserHeader == "" {
		opts.UserHeader = DefaultUserHeader
	}
	if opts.Throttle.UserHeader == "" {
		opts.Throttle.UserHeader = opts.UserHeader
	}
	h := handlers{svc: svc, userHeader: opts.UserHeader}

	r := mux.NewRouter()
	r.HandleFunc("/shop/{id:[0-9]+}", h.queryShop).Methods(http.MethodGet)
	r.HandleFunc("/shop", h.updateShop).Methods(http.MethodPut)
	r.HandleFunc("/shop/{id:[0-9]+}/preheat", h.preheatShop).Methods(http.MethodPost)

	r.HandleFunc("/voucher/seckill", h.addSeckillVoucher).Methods(http.MethodPost)
	r.HandleFunc("/voucher/seckill/{id:[0-9]+}/stock", h.remaining).Methods(http.MethodGet)
	r.HandleFunc("/voucher/seckill/{id:[0-9]+}/stock", h.restock).Methods(http.MethodPut)

	// throttle por comprador roda antes da vaga por voucher
	purchase := ThrottleMiddleware(opts.Throttle)(
		VoucherConcurrencyMiddleware(opts.Concurrency)(http.HandlerFunc(h.seckill)))
	r.Handle("/voucher-order/seckill/{id:[0-9]+}", purchase).Methods(http.MethodPost)

	return ConcurrencyMiddleware(opts.Concurrency)(r)
}

type handlers struct {
	svc        Services
	userHeader string
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id", domain.ErrInvalidArgument)
	}
	return id, nil
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	return nil
}

func (h handlers) queryShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var strategy domain.Strategy
	if raw := r.URL.Query().Get("strategy"); raw != "" {
		s, valid := domain.ParseStrategy(raw)
		if !valid {
			writeError(w, r, fmt.Errorf("%w: unknown strategy %q", domain.ErrInvalidArgument, raw))
			return
		}
		strategy = s
	}

	shop, found, err := h.svc.Catalog.QueryShop(r.Context(), id, strategy)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		fail(w, "shop not found")
		return
	}
	ok(w, shop)
}

func (h handlers) updateShop(w http.ResponseWriter, r *http.Request) {
	var shop domain.Shop
	if err := decode(r, &shop); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Catalog.UpdateShop(r.Context(), shop); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, nil)
}

func (h handlers) preheatShop(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	found, err := h.svc.Catalog.PreheatShop(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		fail(w, "shop not found")
		return
	}
	ok(w, nil)
}

type seckillVoucherRequest struct {
	VoucherID int64     `json:"voucherId"`
	Stock     int64     `json:"stock"`
	BeginTime time.Time `json:"beginTime"`
	EndTime   time.Time `json:"endTime"`
}

func (h handlers) addSeckillVoucher(w http.ResponseWriter, r *http.Request) {
	var req seckillVoucherRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	err := h.svc.Vouchers.AddSeckillVoucher(r.Context(), domain.VoucherStock{
		VoucherID:   req.VoucherID,
		Stock:       req.Stock,
		WindowStart: req.BeginTime,
		WindowEnd:   req.EndTime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, req.VoucherID)
}

func (h handlers) remaining(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	n, err := h.svc.Vouchers.Remaining(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, n)
}

func (h handlers) restock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Stock int64 `json:"stock"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.svc.Vouchers.Restock(r.Context(), id, req.Stock); err != nil {
		writeError(w, r, err)
		return
	}
	ok(w, nil)
}

func (h handlers) seckill(w http.ResponseWriter, r *http.Request) {
	uid, found := userID(r, h.userHeader)
	if !found {
		writeJSON(w, http.StatusUnauthorized, Result{Success: false, ErrorMsg: "login required"})
		return
	}
	voucherID, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	res, err := h.svc.Seckill.Purchase(r.Context(), uid, voucherID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Verdict != domain.Admitted {
		fail(w, res.Verdict.Reason())
		return
	}
	ok(w, strconv.FormatInt(res.OrderID, 10))
}
