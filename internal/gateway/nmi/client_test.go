package nmi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeldorado/rebill/internal/config"
	"github.com/codeldorado/rebill/internal/domain/transaction"
	ierr "github.com/codeldorado/rebill/internal/errors"
	"github.com/codeldorado/rebill/internal/gateway"
	"github.com/codeldorado/rebill/internal/logger"
	"github.com/codeldorado/rebill/internal/testutil"
	"github.com/codeldorado/rebill/internal/types"
)

// failingRecorder always fails Create, simulating a storage outage at the
// moment an approved charge must be recorded
type failingRecorder struct{}

func (failingRecorder) Create(ctx context.Context, txn *transaction.Transaction) error {
	return ierr.NewError("storage unavailable").Mark(ierr.ErrDatabase)
}
func (failingRecorder) Get(ctx context.Context, id string) (*transaction.Transaction, error) {
	return nil, ierr.NewError("not found").Mark(ierr.ErrNotFound)
}
func (failingRecorder) GetByGatewayTxnID(ctx context.Context, id string) (*transaction.Transaction, error) {
	return nil, ierr.NewError("not found").Mark(ierr.ErrNotFound)
}
func (failingRecorder) ListByCustomer(ctx context.Context, customerID string) ([]*transaction.Transaction, error) {
	return nil, nil
}

func newTestClient(t *testing.T, handler http.Handler) (gateway.Client, *testutil.InMemoryTransactionStore, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	recorder := testutil.NewInMemoryTransactionStore()
	client := NewClient(config.GatewayConfig{
		APIKey:         "test-key",
		ThreeStepURL:   srv.URL + "/three-step",
		TransactionURL: srv.URL + "/transact",
		Timeout:        5 * time.Second,
	}, recorder, logger.NewNopLogger())
	return client, recorder, srv
}

func TestInitializeCharge(t *testing.T) {
	t.Run("returns form url on approval", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<response><result>1</result><form-url>https://secure.nmi.com/form/abc</form-url></response>`))
		}))

		res, err := client.InitializeCharge(context.Background(), &gateway.InitializeRequest{
			Amount:      decimal.NewFromFloat(19.99),
			Currency:    "USD",
			RedirectURL: "https://example.com/return",
		})
		require.NoError(t, err)
		assert.Equal(t, "https://secure.nmi.com/form/abc", res.FormURL)
	})

	t.Run("rejects non positive amount before any network call", func(t *testing.T) {
		called := false
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		_, err := client.InitializeCharge(context.Background(), &gateway.InitializeRequest{
			Amount:      decimal.Zero,
			Currency:    "USD",
			RedirectURL: "https://example.com/return",
		})
		assert.True(t, ierr.IsValidation(err))
		assert.False(t, called)
	})

	t.Run("rejects malformed currency before any network call", func(t *testing.T) {
		called := false
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		_, err := client.InitializeCharge(context.Background(), &gateway.InitializeRequest{
			Amount:      decimal.NewFromInt(10),
			Currency:    "usd",
			RedirectURL: "https://example.com/return",
		})
		assert.True(t, ierr.IsValidation(err))
		assert.False(t, called)
	})

	t.Run("refused initialization is a protocol error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<response><result>3</result><result-text>Invalid API key</result-text><result-code>300</result-code></response>`))
		}))

		_, err := client.InitializeCharge(context.Background(), &gateway.InitializeRequest{
			Amount:      decimal.NewFromInt(10),
			Currency:    "USD",
			RedirectURL: "https://example.com/return",
		})
		assert.True(t, ierr.IsGatewayProtocol(err))
	})
}

func TestCompleteCharge(t *testing.T) {
	t.Run("approved charge is recorded before success is reported", func(t *testing.T) {
		client, recorder, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<response>
				<result>1</result>
				<result-text>SUCCESS</result-text>
				<result-code>100</result-code>
				<transaction-id>987654</transaction-id>
				<amount>19.99</amount>
				<currency>USD</currency>
				<billing><cc-number>4xxxxxxxxxxx1111</cc-number></billing>
			</response>`))
		}))

		res, err := client.CompleteCharge(context.Background(), "tok_abc")
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusSuccess, res.Status)
		assert.Equal(t, "987654", res.TransactionID)
		assert.Equal(t, "1111", res.CardLast4)

		recorded, err := recorder.GetByGatewayTxnID(context.Background(), "987654")
		require.NoError(t, err)
		assert.Equal(t, types.TransactionKindSale, recorded.Kind)
		assert.Equal(t, types.TransactionStatusApproved, recorded.Status)
		assert.True(t, recorded.Amount.Equal(decimal.NewFromFloat(19.99)))
	})

	t.Run("declined charge carries the decline code and is never recorded", func(t *testing.T) {
		client, recorder, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<response>
				<result>2</result>
				<result-text>DECLINE</result-text>
				<result-code>200</result-code>
				<transaction-id>111222</transaction-id>
			</response>`))
		}))

		res, err := client.CompleteCharge(context.Background(), "tok_abc")
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusDeclined, res.Status)
		assert.Equal(t, "200", res.DeclineCode)
		assert.Equal(t, "DECLINE", res.Message)
		assert.Empty(t, recorder.All())
	})

	t.Run("processor error result stays distinct from a decline", func(t *testing.T) {
		client, recorder, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<response><result>3</result><result-text>Processor unavailable</result-text></response>`))
		}))

		res, err := client.CompleteCharge(context.Background(), "tok_abc")
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusError, res.Status)
		assert.Empty(t, res.DeclineCode)
		assert.Empty(t, recorder.All())
	})

	t.Run("malformed envelope is a protocol error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`this is not xml`))
		}))

		_, err := client.CompleteCharge(context.Background(), "tok_abc")
		assert.True(t, ierr.IsGatewayProtocol(err))
	})

	t.Run("transport failure is a communication error", func(t *testing.T) {
		client, _, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := client.CompleteCharge(context.Background(), "tok_abc")
		assert.True(t, ierr.IsGatewayCommunication(err))
	})

	t.Run("empty token is rejected before any network call", func(t *testing.T) {
		called := false
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		_, err := client.CompleteCharge(context.Background(), "   ")
		assert.True(t, ierr.IsValidation(err))
		assert.False(t, called)
	})
}

func TestChargeCustomer(t *testing.T) {
	req := func() *gateway.ChargeCustomerRequest {
		return &gateway.ChargeCustomerRequest{
			CustomerRef: "vault-42",
			CustomerID:  "cust_001",
			Token:       "tok_stored",
			Amount:      decimal.NewFromFloat(25.50),
			Currency:    "USD",
			Kind:        types.TransactionKindRebill,
			Metadata:    types.Metadata{"subscription_id": "subs_xyz"},
		}
	}

	t.Run("approved charge is recorded with customer and kind", func(t *testing.T) {
		var gotForm map[string]string
		client, recorder, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			gotForm = map[string]string{
				"type":              r.PostForm.Get("type"),
				"customer_vault_id": r.PostForm.Get("customer_vault_id"),
				"amount":            r.PostForm.Get("amount"),
				"mdf1":              r.PostForm.Get("merchant_defined_field_1"),
			}
			w.Write([]byte("response=1&responsetext=SUCCESS&transactionid=555666&response_code=100"))
		}))

		res, err := client.ChargeCustomer(context.Background(), req())
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusSuccess, res.Status)
		assert.Equal(t, "555666", res.TransactionID)

		assert.Equal(t, "sale", gotForm["type"])
		assert.Equal(t, "vault-42", gotForm["customer_vault_id"])
		assert.Equal(t, "25.50", gotForm["amount"])
		assert.Equal(t, "subscription_id=subs_xyz", gotForm["mdf1"])

		recorded, err := recorder.GetByGatewayTxnID(context.Background(), "555666")
		require.NoError(t, err)
		assert.Equal(t, "cust_001", recorded.CustomerID)
		assert.Equal(t, types.TransactionKindRebill, recorded.Kind)
	})

	t.Run("declined charge passes the processor code through verbatim", func(t *testing.T) {
		client, recorder, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("response=2&responsetext=DECLINE&response_code=223&transactionid=0"))
		}))

		res, err := client.ChargeCustomer(context.Background(), req())
		require.NoError(t, err)
		assert.Equal(t, gateway.StatusDeclined, res.Status)
		assert.Equal(t, "223", res.DeclineCode)
		assert.Empty(t, recorder.All())
	})

	t.Run("unparseable body is a protocol error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>gateway timeout</html>"))
		}))

		_, err := client.ChargeCustomer(context.Background(), req())
		assert.True(t, ierr.IsGatewayProtocol(err))
	})

	t.Run("non-2xx status is a protocol error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))

		_, err := client.ChargeCustomer(context.Background(), req())
		assert.True(t, ierr.IsGatewayProtocol(err))
	})

	t.Run("missing customer ref is rejected before any network call", func(t *testing.T) {
		called := false
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		r := req()
		r.CustomerRef = ""
		_, err := client.ChargeCustomer(context.Background(), r)
		assert.True(t, ierr.IsValidation(err))
		assert.False(t, called)
	})

	t.Run("recorder failure turns an approval into an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("response=1&responsetext=SUCCESS&transactionid=777&response_code=100"))
		}))
		t.Cleanup(srv.Close)

		client := NewClient(config.GatewayConfig{
			APIKey:         "test-key",
			TransactionURL: srv.URL,
			Timeout:        5 * time.Second,
		}, failingRecorder{}, logger.NewNopLogger())

		_, err := client.ChargeCustomer(context.Background(), req())
		assert.True(t, ierr.IsDatabase(err))
	})
}

func TestRefund(t *testing.T) {
	t.Run("approved refund returns the new transaction id", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.ParseForm()
			assert.Equal(t, "refund", r.PostForm.Get("type"))
			assert.Equal(t, "555666", r.PostForm.Get("transactionid"))
			w.Write([]byte("response=1&responsetext=SUCCESS&transactionid=888999"))
		}))

		res, err := client.Refund(context.Background(), "555666", decimal.NewFromInt(10))
		require.NoError(t, err)
		assert.Equal(t, "888999", res.TransactionID)
	})

	t.Run("declined refund is a declined error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("response=2&responsetext=REFUSED&response_code=300"))
		}))

		_, err := client.Refund(context.Background(), "555666", decimal.NewFromInt(10))
		assert.True(t, ierr.IsDeclined(err))
	})

	t.Run("error response is a protocol error", func(t *testing.T) {
		client, _, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("response=3&responsetext=Transaction not found"))
		}))

		_, err := client.Refund(context.Background(), "555666", decimal.NewFromInt(10))
		assert.True(t, ierr.IsGatewayProtocol(err))
	})
}
