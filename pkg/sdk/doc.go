// Package paywatch is a Go client for the paywatch HTTP API: upload a
// candidate spreadsheet, ask questions about it, and read the event log.
//
//	client, _ := paywatch.New("http://localhost:8000", paywatch.WithAPIKey("local-dev-key"))
//	res, _ := client.UploadFile(ctx, "candidates.xlsx")
//	ans, _ := client.Query(ctx, "top 3 highest ctc in Pune")
//	fmt.Println(ans.Text)
//
// Errors returned by the server match the exported sentinels:
//
//	if errors.Is(err, paywatch.ErrDataNotReady) {
//	    // upload a spreadsheet first
//	}
package paywatch
