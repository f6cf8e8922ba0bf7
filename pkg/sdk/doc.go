// Package bookqa embeds the book question-answering engine in a Go program.
//
// The client loads a precomputed corpus (pages plus embeddings), answers
// questions through an embedding and a completion provider, and caches
// answers in Valkey, Redis or memory.
//
//	client, _ := bookqa.New(ctx,
//	    bookqa.WithValkey("localhost:6379", ""),
//	    bookqa.WithOpenAI(os.Getenv("OPENAI_API_KEY"), ""),
//	    bookqa.WithCorpusFiles("book.pdf.pages.csv", "book.pdf.embeddings.csv"),
//	)
//	defer client.Close()
//
//	ans, _ := client.Ask(ctx, "How do I find my first customers")
//	fmt.Println(ans.Answer)
package bookqa
