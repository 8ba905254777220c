package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/modelmarket/internal/adapters/http/api"
	"github.com/okian/modelmarket/internal/adapters/repository"
	"github.com/okian/modelmarket/internal/domain/dedupe"
	"github.com/okian/modelmarket/internal/domain/funds"
	"github.com/okian/modelmarket/internal/domain/ledger"
	"github.com/okian/modelmarket/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const (
	seller   = "0x00000000000000000000000000000000000000a1"
	buyer    = "0x00000000000000000000000000000000000000b2"
	stranger = "0x00000000000000000000000000000000000000c3"
	benA     = "0x00000000000000000000000000000000000000e4"
	benB     = "0x00000000000000000000000000000000000000f5"
	market   = "0x000000000000000000000000000000000000aa01"
	treasury = "0x000000000000000000000000000000000000aa02"
)

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} { return m.stats }

type harness struct {
	mux   *http.ServeMux
	bank  *funds.Bank
	ranks *repository.TreapStore
}

func newHarness() *harness {
	bank := funds.NewBank()
	reg := ledger.NewRegistry(ledger.WithSink(bank))
	mkt, err := ledger.NewMarketplace(reg, model.Address(market), model.Address(treasury), 250)
	if err != nil {
		panic(err)
	}
	ranks := repository.NewTreapStore()
	server := api.NewServer(api.Dependencies{
		Ledger:   reg,
		Market:   mkt,
		Accounts: bank,
		Ranking:  ranks,
		Deduper:  dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(100)),
		Stats:    &mockStatsProvider{stats: map[string]interface{}{"queue_size": 0}},
	}, api.WithMaxLeaderboardLimit(50))
	mux := http.NewServeMux()
	server.Register(mux)
	return &harness{mux: mux, bank: bank, ranks: ranks}
}

func (h *harness) do(method, path, caller, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.mux.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder, v any) {
	So(json.Unmarshal(w.Body.Bytes(), v), ShouldBeNil)
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Ambient(t *testing.T) {
	Convey("Given a registered server", t, func() {
		h := newHarness()

		Convey("Then /healthz reports ok with a request id", func() {
			w := h.do("GET", "/healthz", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("X-Request-ID"), ShouldNotBeEmpty)
		})

		Convey("Then /metrics serves Prometheus text", func() {
			w := h.do("GET", "/metrics", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "modelmarket_")
		})

		Convey("Then /stats returns provider stats", func() {
			w := h.do("GET", "/stats", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "queue_size")
		})

		Convey("Then an unknown method is rejected by the router", func() {
			w := h.do("DELETE", "/assets", seller, "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Assets(t *testing.T) {
	Convey("Given a server", t, func() {
		h := newHarness()

		Convey("When minting without a caller", func() {
			w := h.do("POST", "/assets", "", `{"to":"`+seller+`","uri":"ipfs://QmTest123"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("When minting to the zero address", func() {
			w := h.do("POST", "/assets", seller, `{"to":"`+string(model.ZeroAddress)+`","uri":"x"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_recipient")
		})

		Convey("When minting an asset", func() {
			w := h.do("POST", "/assets", seller, `{"to":"`+seller+`","uri":"ipfs://QmTest123"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			var minted struct {
				ID uint64 `json:"id"`
			}
			decodeBody(w, &minted)
			So(minted.ID, ShouldEqual, uint64(1))

			Convey("Then it can be read back", func() {
				w := h.do("GET", "/assets/1", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				var a model.Asset
				decodeBody(w, &a)
				So(a.Owner, ShouldEqual, model.Address(seller))
				So(a.URI, ShouldEqual, "ipfs://QmTest123")
			})

			Convey("Then a stranger cannot update its metrics", func() {
				w := h.do("PUT", "/assets/1/metrics", stranger, `{"reward_rate":"800000000000000000","completion_rate":90,"contribution_score":"600000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusForbidden)
				So(errorCode(w), ShouldEqual, "unauthorized")
			})

			Convey("Then the owner can update its metrics", func() {
				w := h.do("PUT", "/assets/1/metrics", seller, `{"reward_rate":"800000000000000000","completion_rate":90,"contribution_score":"600000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusOK)

				w = h.do("GET", "/assets/1/metrics", "", "")
				var m model.Metrics
				decodeBody(w, &m)
				So(m.RewardRate, ShouldEqual, uint64(800_000_000_000_000_000))
				So(m.CompletionRate, ShouldEqual, uint64(90))
			})

			Convey("Then a completion rate above 100 is out of range", func() {
				w := h.do("PUT", "/assets/1/metrics", seller, `{"reward_rate":"0","completion_rate":101,"contribution_score":"0"}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "out_of_range")
			})

			Convey("Then distributing without a profit config conflicts", func() {
				w := h.do("POST", "/assets/1/distributions", seller, `{"amount":"1000"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(w), ShouldEqual, "config_missing")
			})

			Convey("And a 60/40 profit config is set and funded", func() {
				w := h.do("PUT", "/assets/1/profit-config", seller, `{"beneficiaries":["`+benA+`","`+benB+`"],"shares":[60,40]}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				w = h.do("POST", "/accounts/"+seller+"/deposit", "", `{"amount":"1000000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusOK)

				Convey("Then distributing 1 ether pays both beneficiaries", func() {
					w := h.do("POST", "/assets/1/distributions", seller, `{"amount":"1000000000000000000"}`)
					So(w.Code, ShouldEqual, http.StatusOK)
					So(h.bank.Balance(context.Background(), model.Address(benA)), ShouldEqual, model.MustParseEther("0.6"))
					So(h.bank.Balance(context.Background(), model.Address(benB)), ShouldEqual, model.MustParseEther("0.4"))
				})

				Convey("Then a rejecting beneficiary fails the payout", func() {
					w := h.do("POST", "/accounts/"+benB+"/reject", "", `{"reject":true}`)
					So(w.Code, ShouldEqual, http.StatusOK)
					w = h.do("POST", "/assets/1/distributions", seller, `{"amount":"1000000000000000000"}`)
					So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
					So(errorCode(w), ShouldEqual, "payout_failed")
				})
			})

			Convey("Then an invalid profit config is rejected", func() {
				w := h.do("PUT", "/assets/1/profit-config", seller, `{"beneficiaries":["`+benA+`"],"shares":[90]}`)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(errorCode(w), ShouldEqual, "invalid_config")
			})

			Convey("Then transferring by the owner moves it", func() {
				w := h.do("POST", "/assets/1/transfer", seller, `{"to":"`+buyer+`"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				w = h.do("GET", "/owners/"+buyer+"/balance", "", "")
				So(w.Body.String(), ShouldContainSubstring, `"balance":1`)
			})
		})

		Convey("When reading an asset that does not exist", func() {
			w := h.do("GET", "/assets/9", "", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "unknown_asset")
		})

		Convey("When the asset id is malformed", func() {
			w := h.do("GET", "/assets/abc", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_Marketplace(t *testing.T) {
	Convey("Given a minted asset approved for the marketplace", t, func() {
		h := newHarness()
		So(h.do("POST", "/assets", seller, `{"to":"`+seller+`","uri":"ipfs://QmTest123"}`).Code, ShouldEqual, http.StatusCreated)
		So(h.do("POST", "/assets/1/approve", seller, `{"operator":"`+market+`"}`).Code, ShouldEqual, http.StatusOK)
		So(h.do("POST", "/accounts/"+buyer+"/deposit", "", `{"amount":"2000000000000000000"}`).Code, ShouldEqual, http.StatusOK)

		Convey("When a zero price listing is submitted", func() {
			w := h.do("POST", "/listings", seller, `{"id":1,"price":"0"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_price")
		})

		Convey("When the owner lists it for 1 ether", func() {
			w := h.do("POST", "/listings", seller, `{"id":1,"price":"1000000000000000000"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)

			Convey("Then the listing is active and the marketplace holds the asset", func() {
				w := h.do("GET", "/listings/1", "", "")
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"is_active":true`)
				w = h.do("GET", "/assets/1", "", "")
				So(w.Body.String(), ShouldContainSubstring, market)
				w = h.do("GET", "/listings", "", "")
				So(w.Body.String(), ShouldContainSubstring, `"ids":[1]`)
			})

			Convey("Then listing again conflicts", func() {
				w := h.do("POST", "/listings", seller, `{"id":1,"price":"1"}`)
				So(w.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(w), ShouldEqual, "already_listed")
			})

			Convey("Then underpaying requires payment", func() {
				w := h.do("POST", "/listings/1/purchase", buyer, `{"payment":"500000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusPaymentRequired)
				So(errorCode(w), ShouldEqual, "insufficient_payment")
			})

			Convey("Then a stranger cannot cancel", func() {
				w := h.do("DELETE", "/listings/1", stranger, "")
				So(w.Code, ShouldEqual, http.StatusForbidden)
			})

			Convey("Then buying settles fee and proceeds", func() {
				w := h.do("POST", "/listings/1/purchase", buyer, `{"payment":"1000000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var s model.Settlement
				decodeBody(w, &s)
				So(s.Fee, ShouldEqual, model.MustParseEther("0.025"))
				So(s.SellerProceeds, ShouldEqual, model.MustParseEther("0.975"))

				w = h.do("GET", "/accounts/"+seller, "", "")
				So(w.Body.String(), ShouldContainSubstring, `"975000000000000000"`)

				w = h.do("POST", "/listings/1/purchase", buyer, `{"payment":"1000000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusNotFound)
				So(errorCode(w), ShouldEqual, "not_listed")
			})

			Convey("Then a rejecting seller fails the settlement", func() {
				So(h.do("POST", "/accounts/"+seller+"/reject", "", `{"reject":true}`).Code, ShouldEqual, http.StatusOK)
				w := h.do("POST", "/listings/1/purchase", buyer, `{"payment":"1000000000000000000"}`)
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(errorCode(w), ShouldEqual, "settlement_failed")
			})

			Convey("Then the seller can cancel", func() {
				w := h.do("DELETE", "/listings/1", seller, "")
				So(w.Code, ShouldEqual, http.StatusOK)
				w = h.do("GET", "/listings/1", "", "")
				So(w.Body.String(), ShouldContainSubstring, `"is_active":false`)
			})
		})

		Convey("When cancelling an asset that is not listed", func() {
			w := h.do("DELETE", "/listings/1", seller, "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
			So(errorCode(w), ShouldEqual, "not_listed")
		})

		Convey("When an operator grant is set and read", func() {
			w := h.do("POST", "/operators", seller, `{"operator":"`+stranger+`","approved":true}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			w = h.do("GET", "/operators/"+seller+"/"+stranger, "", "")
			So(w.Body.String(), ShouldContainSubstring, `"approved":true`)
		})
	})
}

func TestServer_Idempotency(t *testing.T) {
	Convey("Given a server", t, func() {
		h := newHarness()
		body := `{"to":"` + seller + `","uri":"ipfs://once"}`

		Convey("When the same idempotency key is submitted twice", func() {
			first := h.do("POST", "/assets", seller, body, "Idempotency-Key", "k-1")
			second := h.do("POST", "/assets", seller, body, "Idempotency-Key", "k-1")

			Convey("Then only the first is applied", func() {
				So(first.Code, ShouldEqual, http.StatusCreated)
				So(second.Code, ShouldEqual, http.StatusConflict)
				So(errorCode(second), ShouldEqual, "duplicate_request")
				So(h.do("GET", "/assets/2", "", "").Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When a keyed request fails", func() {
			bad := h.do("POST", "/assets", seller, `{"to":"`+string(model.ZeroAddress)+`"}`, "Idempotency-Key", "k-2")
			So(bad.Code, ShouldEqual, http.StatusBadRequest)

			Convey("Then the key is released for a retry", func() {
				retry := h.do("POST", "/assets", seller, body, "Idempotency-Key", "k-2")
				So(retry.Code, ShouldEqual, http.StatusCreated)
			})
		})
	})
}

func TestServer_Leaderboard(t *testing.T) {
	Convey("Given ranked assets", t, func() {
		h := newHarness()
		ctx := context.Background()
		_, _ = h.ranks.UpdateScore(ctx, 1, 80, 1)
		_, _ = h.ranks.UpdateScore(ctx, 2, 95, 2)

		Convey("When reading the leaderboard", func() {
			w := h.do("GET", "/leaderboard?limit=10", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var entries []api.Entry
			decodeBody(w, &entries)
			So(len(entries), ShouldEqual, 2)
			So(entries[0].AssetID, ShouldEqual, model.AssetID(2))
			So(entries[0].Rank, ShouldEqual, 1)
		})

		Convey("When the limit is invalid or too large", func() {
			So(h.do("GET", "/leaderboard?limit=0", "", "").Code, ShouldEqual, http.StatusBadRequest)
			w := h.do("GET", "/leaderboard?limit=51", "", "")
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "limit_exceeded")
		})

		Convey("When reading a rank", func() {
			w := h.do("GET", "/assets/1/rank", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rank":2`)
			So(h.do("GET", "/assets/7/rank", "", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Transactions(t *testing.T) {
	Convey("Given a few committed operations", t, func() {
		h := newHarness()
		for i := 0; i < 3; i++ {
			So(h.do("POST", "/assets", seller, `{"to":"`+seller+`","uri":"x"}`).Code, ShouldEqual, http.StatusCreated)
		}

		Convey("When paging the journal", func() {
			w := h.do("GET", "/transactions?after=1&limit=1", "", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			var page struct {
				Transactions []model.Tx `json:"transactions"`
			}
			decodeBody(w, &page)
			So(len(page.Transactions), ShouldEqual, 1)
			So(page.Transactions[0].Seq, ShouldEqual, uint64(2))
			So(page.Transactions[0].Op, ShouldEqual, "mint")
		})

		Convey("When the cursor is malformed", func() {
			So(h.do("GET", "/transactions?after=x", "", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
