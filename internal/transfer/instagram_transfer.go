package transfer

// InstagramPlatformData is stored in the social account's platform_data
// column; the adapter needs the business account id to publish.
type InstagramPlatformData struct {
	BusinessAccountID string `json:"business_account_id"`
	LinkedPageID      string `json:"linked_page_id"`
}

type InstagramErrorResponse struct {
	Error struct {
		Message        string `json:"message"`
		Type           string `json:"type"`
		Code           int    `json:"code"`
		ErrorSubcode   int    `json:"error_subcode"`
		IsTransient    bool   `json:"is_transient"`
		ErrorUserTitle string `json:"error_user_title"`
		ErrorUserMsg   string `json:"error_user_msg"`
		FbtraceID      string `json:"fbtrace_id"`
	} `json:"error"`
}
