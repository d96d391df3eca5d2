// Package authguard embeds a behavioral-biometrics session agent in a Go
// host application. The host forwards its input events; the agent streams
// keystroke flight times and pointer paths to the decision service and
// locks the session when the service flags it.
//
// Usage:
//
//	s, err := authguard.New(clientID, userID,
//	    authguard.WithEndpoint("https://risk.example.com"),
//	    authguard.WithOverlay(myOverlay),
//	)
//	if err != nil {
//	    return err
//	}
//	s.Start(ctx)
//	defer s.Stop()
//
//	s.KeyDown("KeyA", ms)
//	s.PointerMove(x, y, ms)
//
// The SDK links directly against internal packages. External users import
// github.com/ppiankov/authguard/sdk/go/authguard.
package authguard
