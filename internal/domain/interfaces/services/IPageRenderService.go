package Iservices

// IPageRenderService renders the client application for a request URL.
type IPageRenderService interface {
	RenderPage(requestURL string) (string, error)
}
