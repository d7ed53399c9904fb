package mpesa

import "testing"

func TestParseCallbackSuccess(t *testing.T) {
	raw := []byte(`{
	  "Body": {
	    "stkCallback": {
	      "MerchantRequestID": "29115-34620561-1",
	      "CheckoutRequestID": "ws_CO_191220191020363925",
	      "ResultCode": 0,
	      "ResultDesc": "The service request is processed successfully.",
	      "CallbackMetadata": {
	        "Item": [
	          {"Name": "Amount", "Value": 15000.00},
	          {"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
	          {"Name": "TransactionDate", "Value": 20191219102115},
	          {"Name": "PhoneNumber", "Value": 254712345678}
	        ]
	      }
	    }
	  }
	}`)

	cb, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}

	if cb.CheckoutRequestID != "ws_CO_191220191020363925" {
		t.Errorf("CheckoutRequestID = %q", cb.CheckoutRequestID)
	}
	if cb.ResultCode != 0 {
		t.Errorf("ResultCode = %d, want 0", cb.ResultCode)
	}
	if cb.Receipt != "NLJ7RT61SV" {
		t.Errorf("Receipt = %q, want NLJ7RT61SV", cb.Receipt)
	}
	if cb.Metadata["merchant_request_id"] != "29115-34620561-1" {
		t.Errorf("merchant_request_id = %v", cb.Metadata["merchant_request_id"])
	}
	if cb.Metadata["payer_phone"] != "254712345678" {
		t.Errorf("payer_phone = %v", cb.Metadata["payer_phone"])
	}
}

func TestParseCallbackFailure(t *testing.T) {
	raw := []byte(`{
	  "Body": {
	    "stkCallback": {
	      "MerchantRequestID": "29115-34620561-2",
	      "CheckoutRequestID": "ws_CO_cancel",
	      "ResultCode": 1032,
	      "ResultDesc": "Request cancelled by user"
	    }
	  }
	}`)

	cb, err := ParseCallback(raw)
	if err != nil {
		t.Fatalf("ParseCallback: %v", err)
	}
	if cb.ResultCode != 1032 {
		t.Errorf("ResultCode = %d, want 1032", cb.ResultCode)
	}
	if cb.Receipt != "" {
		t.Errorf("Receipt = %q, want empty", cb.Receipt)
	}
	if cb.ResultDesc != "Request cancelled by user" {
		t.Errorf("ResultDesc = %q", cb.ResultDesc)
	}
}

func TestParseCallbackRejectsGarbage(t *testing.T) {
	if _, err := ParseCallback([]byte(`not json`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
	if _, err := ParseCallback([]byte(`{"Body":{}}`)); err == nil {
		t.Error("expected error when CheckoutRequestID missing")
	}
}
