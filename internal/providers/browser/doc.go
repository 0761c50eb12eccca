/*
Package browser implements the detection engine on top of a real Chromium
driven through the DevTools protocol (github.com/go-rod/rod).

# Lifecycle

NewEngine runs once at startup. It resolves the browser executable from
BROWSER_BIN or the usual install locations; if none is found, or the engine is
disabled, it returns detect.Unavailable and every detection fails fast with
detect.ErrEngineUnavailable.

Each session is fully disposable:

 1. launch a new browser process with container-safe flags
 2. open an incognito context and a single blank page
 3. override the user agent and enable the Network domain
 4. stream Network.requestWillBeSent and Network.responseReceived to the
    listener
 5. on Close: stop the event stream, close page, context and browser, kill
    the process and delete its profile directory

Sessions are never pooled. A crashed or hung page cannot affect other runs.
*/
package browser
