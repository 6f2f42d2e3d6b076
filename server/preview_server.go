package server

type framePayload struct {
	Seq    uint64 `json:"seq"`
	At     int64  `json:"at"` // ms
	Width  int    `json:"width"`
	Height int    `json:"height"`
	// base64 in JSON
	JPEG []byte `json:"jpeg"`
}

// RunPreviewServer pushes preview frames until the client goes away or the
// preview stops
func RunPreviewServer(st Studio, conn wsConnection) {
	ws := newWsConn(conn, "preview")
	defer ws.close()

	id, frames, err := st.Subscribe()
	if err != nil {
		ws.sendError(err)
		return
	}
	defer st.Unsubscribe(id)

	// reads only to notice the client closing
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, err := ws.read(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			payload := framePayload{
				Seq:    f.Seq,
				At:     f.At.Milliseconds(),
				Width:  f.Width,
				Height: f.Height,
				JPEG:   f.JPEG,
			}
			if err := ws.sendWithPayload("frame", payload); err != nil {
				return
			}
		}
	}
}
