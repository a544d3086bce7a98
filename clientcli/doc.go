// Package clientcli provides a client library for the storagegate presigned URL gateway.
//
// Object bytes never travel through the gateway: the client requests a
// presigned URL and then transfers the object directly against the blob
// store. The package includes profile-based configuration for managing
// connections to multiple gateways.
//
// # Basic Usage
//
// Create a client and upload a file to the static namespace of a domain:
//
//	cfg := &clientcli.Config{
//		Endpoint: "http://localhost:8000",
//		Token:    os.Getenv("STORAGEGATE_TOKEN"),
//	}
//
//	client, err := clientcli.New(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		Location:    clientcli.Location{Domain: "agcore", ProjectID: "p1"},
//		LocalPath:   "./file.txt",
//		RelativeKey: "documents/file.txt",
//	})
//
// # Dynamic Groups
//
// Create a group and upload into it:
//
//	id, err := client.NewGroup(ctx, storagegate.NewGroupRequest{Domain: "agcore", ProjectID: "p1"})
//	results, err := client.Upload(ctx, clientcli.UploadOptions{
//		Location:  clientcli.Location{GroupID: id},
//		LocalPath: "./frames",
//		Recursive: true,
//	})
//
// # Profile Configuration
//
//	configFile, err := clientcli.LoadConfigFile(clientcli.DefaultConfigPath())
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	profile, err := configFile.GetProfile("production")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	client, err := clientcli.New(clientcli.ConfigFromProfile(profile))
//
// # Output Formatting
//
//	formatter := clientcli.NewFormatter(jsonOutput, quiet)
//	formatter.FormatUpload(os.Stdout, results)
package clientcli
