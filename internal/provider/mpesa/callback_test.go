package mpesa

import (
	"testing"

	"github.com/levisbarua/pesaflow/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const successCallback = `{
  "Body": {
    "stkCallback": {
      "MerchantRequestID": "29115-34620561-1",
      "CheckoutRequestID": "ws_CO_191220191020363925",
      "ResultCode": 0,
      "ResultDesc": "The service request is processed successfully.",
      "CallbackMetadata": {
        "Item": [
          {"Name": "Amount", "Value": 500.00},
          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
          {"Name": "Balance"},
          {"Name": "TransactionDate", "Value": 20191219102115},
          {"Name": "PhoneNumber", "Value": 254712345678}
        ]
      }
    }
  }
}`

func TestParseSTKCallbackBodyEnvelope(t *testing.T) {
	res, err := ParseSTKCallback([]byte(successCallback))
	require.NoError(t, err)

	assert.Equal(t, EnvelopeBody, res.Envelope)
	assert.Equal(t, "ws_CO_191220191020363925", res.CheckoutRequestID)
	assert.True(t, res.Success())
	assert.Equal(t, "NLJ7RT61SV", res.Receipt())
	assert.Equal(t, "254712345678", res.Metadata["PhoneNumber"])
	assert.Equal(t, "500.00", res.Metadata["Amount"])
	assert.NotContains(t, res.Metadata, "Balance")
}

func TestParseSTKCallbackBareEnvelope(t *testing.T) {
	raw := `{"stkCallback":{"MerchantRequestID":"m-1","CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}}`

	res, err := ParseSTKCallback([]byte(raw))
	require.NoError(t, err)

	assert.Equal(t, EnvelopeBare, res.Envelope)
	assert.Equal(t, 1032, res.ResultCode)
	assert.False(t, res.Success())
	assert.Equal(t, "Request cancelled by user", res.ResultDesc)
}

func TestParseSTKCallbackMissingReceiptUsesPlaceholder(t *testing.T) {
	raw := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_2","ResultCode":0,"ResultDesc":"ok","CallbackMetadata":{"Item":[{"Name":"Amount","Value":1}]}}}}`

	res, err := ParseSTKCallback([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, ReceiptPlaceholder, res.Receipt())
}

func TestParseSTKCallbackMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":              ``,
		"not json":           `ResultCode=0`,
		"array":              `[1,2,3]`,
		"no envelope":        `{"CheckoutRequestID":"ws_CO_3","ResultCode":0}`,
		"empty body":         `{"Body":{}}`,
		"missing request id": `{"stkCallback":{"ResultCode":0}}`,
		"missing result":     `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_4"}}}`,
		"bad result code":    `{"stkCallback":{"CheckoutRequestID":"ws_CO_5","ResultCode":"zero"}}`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSTKCallback([]byte(raw))
			require.Error(t, err)

			var mErr *domain.MalformedCallbackError
			assert.ErrorAs(t, err, &mErr)
		})
	}
}

func TestParseSTKCallbackToleratesLooselyTypedFields(t *testing.T) {
	tests := map[string]struct {
		raw          string
		wantMerchant string
		wantDesc     string
	}{
		"numeric merchant id": {
			raw:          `{"stkCallback":{"MerchantRequestID":2911534620561,"CheckoutRequestID":"ws_CO_6","ResultCode":1032,"ResultDesc":"Request cancelled by user"}}`,
			wantMerchant: "2911534620561",
			wantDesc:     "Request cancelled by user",
		},
		"null fields": {
			raw: `{"Body":{"stkCallback":{"MerchantRequestID":null,"CheckoutRequestID":"ws_CO_7","ResultCode":"1","ResultDesc":null}}}`,
		},
		"object merchant id": {
			raw:          `{"stkCallback":{"MerchantRequestID":{"id":1},"CheckoutRequestID":"ws_CO_8","ResultCode":0,"ResultDesc":17}}`,
			wantMerchant: `{"id":1}`,
			wantDesc:     "17",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			res, err := ParseSTKCallback([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.wantMerchant, res.MerchantRequestID)
			assert.Equal(t, tt.wantDesc, res.ResultDesc)
		})
	}
}
